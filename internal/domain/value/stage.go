package value

import (
	"time"

	"groupbuy_market/internal/domain"
	"groupbuy_market/pkg/errcodes"
)

// DealKind различает розничные сделки и слоты на недвижимость: у них разные
// модели воронки (см. FunnelStage и двухфазный вариант у розницы).
type DealKind string

const (
	DealKindRetail     DealKind = "retail"
	DealKindRealEstate DealKind = "real_estate"
)

func ParseDealKind(s string) (DealKind, error) {
	switch DealKind(s) {
	case DealKindRetail, DealKindRealEstate:
		return DealKind(s), nil
	}

	return "", domain.NewError(errcodes.ValidationError, "unknown deal kind "+s)
}

// FunnelStage — закрытый набор стадий воронки (вариант для недвижимости).
// Розничные сделки живут в двух стадиях: PRE_REGISTRATION (открыта) и
// REGISTRATION_CLOSED, переключаемых дедлайном или закрытием вручную.
type FunnelStage string

const (
	StagePreRegistration        FunnelStage = "PRE_REGISTRATION"
	StageWebinarScheduled       FunnelStage = "WEBINAR_SCHEDULED"
	StageFOMOConfirmationWindow FunnelStage = "FOMO_CONFIRMATION_WINDOW"
	StageRegistrationClosed     FunnelStage = "REGISTRATION_CLOSED"
)

func (s FunnelStage) String() string {
	return string(s)
}

// ordinal задаёт строгий порядок стадий; переходы допустимы только вперёд.
func (s FunnelStage) ordinal() int {
	switch s {
	case StagePreRegistration:
		return 0
	case StageWebinarScheduled:
		return 1
	case StageFOMOConfirmationWindow:
		return 2
	case StageRegistrationClosed:
		return 3
	}

	return -1
}

// Before сообщает, стоит ли стадия строго раньше other.
func (s FunnelStage) Before(other FunnelStage) bool {
	return s.ordinal() < other.ordinal()
}

// Terminal — достигнута ли финальная стадия.
func (s FunnelStage) Terminal() bool {
	return s == StageRegistrationClosed
}

// AcceptsRegistrations — открыта ли стадия для приёма заявок безотносительно
// дедлайна. Дедлайн проверяется отдельно (см. funnel.Engine).
func (s FunnelStage) AcceptsRegistrations() bool {
	return s == StagePreRegistration || s == StageFOMOConfirmationWindow
}

func ParseFunnelStage(s string) (FunnelStage, error) {
	switch FunnelStage(s) {
	case StagePreRegistration, StageWebinarScheduled, StageFOMOConfirmationWindow, StageRegistrationClosed:
		return FunnelStage(s), nil
	}

	return "", domain.NewError(errcodes.InvalidStage, "unknown funnel stage "+s)
}

// StageDeadlines — опциональные дедлайны стадий. Просроченная стадия
// считается закрытой на чтении, без отдельного события перехода.
type StageDeadlines map[FunnelStage]time.Time

// Expired сообщает, просрочена ли стадия к моменту now.
func (d StageDeadlines) Expired(stage FunnelStage, now time.Time) bool {
	deadline, ok := d[stage]
	if !ok {
		return false
	}

	return now.After(deadline)
}

// AdmissionStatus — итог попытки вступления.
type AdmissionStatus string

const (
	AdmissionConfirmed   AdmissionStatus = "CONFIRMED"
	AdmissionWaitingList AdmissionStatus = "WAITING_LIST"
	AdmissionRejected    AdmissionStatus = "REJECTED"
)

// RegistrationStatus — статус записи участника. CANCELLED освобождает
// эффективную занятость, но не номер позиции.
type RegistrationStatus string

const (
	RegistrationConfirmed   RegistrationStatus = "CONFIRMED"
	RegistrationWaitingList RegistrationStatus = "WAITING_LIST"
	RegistrationCancelled   RegistrationStatus = "CANCELLED"
)

func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	switch RegistrationStatus(s) {
	case RegistrationConfirmed, RegistrationWaitingList, RegistrationCancelled:
		return RegistrationStatus(s), nil
	}

	return "", domain.NewError(errcodes.ValidationError, "unknown registration status "+s)
}

// RejectReason — причина отказа в допуске.
type RejectReason string

const (
	RejectStageClosed      RejectReason = "STAGE_CLOSED"
	RejectCapacityExceeded RejectReason = "CAPACITY_EXCEEDED"
)
