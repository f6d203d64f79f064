package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestDispatchErrorUnwrapsToSentinel(t *testing.T) {
	inner := fmt.Errorf("%w: POST /cards", ErrThrottled)
	err := &DispatchError{Label: "Rex: walk cycle", Err: inner}

	if !errors.Is(err, ErrThrottled) {
		t.Error("throttle sentinel lost through DispatchError")
	}
	var derr *DispatchError
	if !errors.As(error(err), &derr) || derr.Label != "Rex: walk cycle" {
		t.Errorf("label lost: %v", err)
	}
}

func TestExtractionErrorUnwraps(t *testing.T) {
	inner := errors.New("transcription failed")
	err := &ExtractionError{Err: inner}
	if !errors.Is(err, inner) {
		t.Error("inner error lost through ExtractionError")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Reason: "no completed audio recording among files"}
	if err.Error() != "invalid event payload: no completed audio recording among files" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
