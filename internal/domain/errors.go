package domain

import "errors"

var (
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrDuplicateUsername is returned when registering a username that already exists.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrUserNotFound indicates the referenced user does not exist in the directory.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenInvalid indicates an auth token that is expired, malformed, or unknown.
	ErrTokenInvalid = errors.New("auth token invalid")
	// ErrNotSignedIn is returned when an operation requires an active session.
	ErrNotSignedIn = errors.New("no active session")

	// ErrKeyNotFound is returned by key-value stores for absent keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidDifficulty indicates a difficulty outside easy/medium/advance.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrQuestionSetNotFound indicates no question set is available for a difficulty.
	ErrQuestionSetNotFound = errors.New("question set not found")

	// ErrNoActiveQuiz is returned when no in-flight attempt exists for the user.
	ErrNoActiveQuiz = errors.New("no active quiz attempt")
	// ErrQuizFinished is returned for operations on an attempt past its last question.
	ErrQuizFinished = errors.New("quiz already finished")
	// ErrAnswerAlreadyRecorded guards against answering the same question twice.
	ErrAnswerAlreadyRecorded = errors.New("answer already recorded for current question")
	// ErrAnswerRequired is returned when advancing before an answer was recorded.
	ErrAnswerRequired = errors.New("current question has no recorded answer")
	// ErrInvalidOption indicates a selected option index outside the question's options.
	ErrInvalidOption = errors.New("selected option out of range")
)
