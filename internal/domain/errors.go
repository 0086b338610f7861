package domain

import "errors"

var (
	// ErrDuplicateRiddle is returned when a riddle with the same normalized question exists.
	ErrDuplicateRiddle = errors.New("riddle already submitted")
	// ErrNotFound indicates the riddle does not exist.
	ErrNotFound = errors.New("riddle not found")
	// ErrEmptyField is returned when a question or answer is blank.
	ErrEmptyField = errors.New("question and answer cannot be empty")
	// ErrInvalidRiddleID is returned for malformed riddle identifiers.
	ErrInvalidRiddleID = errors.New("invalid riddle id")
	// ErrRoundAlreadyActive is returned when opening a round while another one exists.
	ErrRoundAlreadyActive = errors.New("a round is already active")
	// ErrRoundNotOpen is returned by operations that require an open round.
	ErrRoundNotOpen = errors.New("no open round")
	// ErrSubmitterCannotAnswer rejects guesses from the riddle's author.
	ErrSubmitterCannotAnswer = errors.New("submitter cannot answer their own riddle")
	// ErrAlreadySolved rejects guesses from users who already answered correctly.
	ErrAlreadySolved = errors.New("already answered correctly")
	// ErrOutOfAttempts rejects guesses after the attempt limit.
	ErrOutOfAttempts = errors.New("out of guesses for this riddle")
	// ErrPoolEmpty means the pool holds no riddles at all.
	ErrPoolEmpty = errors.New("riddle pool is empty")
	// ErrPoolExhausted is the non-fatal notice that no riddle could be opened.
	ErrPoolExhausted = errors.New("riddle pool exhausted")
	// ErrPersistence wraps backing store failures that survived retries.
	ErrPersistence = errors.New("persistence failure")
)

// IsGuessRejection reports whether err is a per-guess rejection rather than a failure.
func IsGuessRejection(err error) bool {
	return errors.Is(err, ErrSubmitterCannotAnswer) ||
		errors.Is(err, ErrAlreadySolved) ||
		errors.Is(err, ErrOutOfAttempts)
}
