package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageResolved      Stage = "RESOLVED"
	StageSeriesPage    Stage = "SERIES_PAGE"
	StageSeriesDone    Stage = "SERIES_DONE"
	StageBookDone      Stage = "BOOK_DONE"
	StageBookFailed    Stage = "BOOK_FAILED"
	StageBookExhausted Stage = "BOOK_EXHAUSTED"
	StageRetryRound    Stage = "RETRY_ROUND"
	StageBackoff       Stage = "BACKOFF"
	StageExported      Stage = "EXPORTED"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
	StageRunCanceled   Stage = "RUN_CANCELED"
)

// Event captures a single step of a collection run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// BookID is the catalog identifier for book-level stages.
	BookID string
	// URL is the page involved, when there is one.
	URL string
	// Page is the listing page number for SERIES_PAGE.
	Page int
	// Attempt is the 1-based fetch attempt for book-level stages.
	Attempt int
	// Resolved is the number of books with usable metadata so far.
	Resolved int
	// Total is the number of books discovered for the run.
	Total int
	// Delay is the scheduler's current inter-request delay.
	Delay time.Duration
	// Dur captures wall time for completed runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context (titles, error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageResolved, StageSeriesPage, StageSeriesDone, StageRetryRound,
		StageBackoff, StageExported, StageRunDone, StageRunError, StageRunCanceled:
	case StageBookDone, StageBookFailed, StageBookExhausted:
		if e.BookID == "" {
			return fmt.Errorf("%s requires book id", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 || e.Delay < 0 {
		return errors.New("durations must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
