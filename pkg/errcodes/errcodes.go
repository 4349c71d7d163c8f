package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	Forbidden           failure.ErrorCode = "Forbidden"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"
	InvalidPaging       failure.ErrorCode = "InvalidPaging"

	// Сделки и тиры
	DealNotFound         failure.ErrorCode = "DealNotFound"
	InvalidDealID        failure.ErrorCode = "InvalidDealID"
	InvalidTierTable     failure.ErrorCode = "InvalidTierTable" // Пустая таблица, дыры или пересечения
	InvalidOriginalPrice failure.ErrorCode = "InvalidOriginalPrice"
	InvalidCapacity      failure.ErrorCode = "InvalidCapacity"
	DealAlreadyClosed    failure.ErrorCode = "DealAlreadyClosed"

	// Воронка
	InvalidStage          failure.ErrorCode = "InvalidStage"
	StageTransitionDenied failure.ErrorCode = "StageTransitionDenied" // Стадии идут только вперёд

	// Регистрации
	RegistrationNotFound         failure.ErrorCode = "RegistrationNotFound"
	InvalidRegistrationID        failure.ErrorCode = "InvalidRegistrationID"
	RegistrationAlreadyCancelled failure.ErrorCode = "RegistrationAlreadyCancelled"
	ConcurrencyConflict          failure.ErrorCode = "ConcurrencyConflict" // Гонка за слот, запрос нужно повторить
)
