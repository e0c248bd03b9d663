package usecase

import (
	"errors"
	"fmt"

	"Sahayak/internal/domain"
	"Sahayak/internal/infrastructure/transport"
	"Sahayak/internal/poller"
	"Sahayak/internal/submission"
)

// describe turns an error into a sentence a teacher can act on.
func describe(err error) string {
	var (
		be  *transport.BackendError
		mre *submission.MalformedResponseError
		jf  *poller.JobFailedError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, transport.ErrAuthExpired):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, transport.ErrTimeout):
		return "The server took too long to respond."
	case errors.As(err, &be):
		return fmt.Sprintf("Server error (%d) - %s", be.StatusCode, be.Message)
	case errors.As(err, &mre):
		return "Unexpected response from server: " + mre.Reason
	case errors.As(err, &jf):
		return jf.Message
	case transport.IsTransport(err):
		return "No response from server. Check that the API URL is correct."
	default:
		return err.Error()
	}
}

func resolutionNotice(res poller.Resolution) domain.Notification {
	switch res.State {
	case poller.StateSucceeded:
		return domain.Notification{
			Level:  domain.LevelSuccess,
			Title:  "Questions generated!",
			Detail: fmt.Sprintf("Found %d questions", len(res.Questions)),
			JobID:  res.JobID,
		}
	case poller.StateFailed:
		return domain.Notification{
			Level:  domain.LevelError,
			Title:  "Question generation failed",
			Detail: res.Message,
			JobID:  res.JobID,
		}
	default:
		var to *poller.JobTimedOutError
		if errors.As(res.Err, &to) && to.LastErr != nil {
			return domain.Notification{
				Level:  domain.LevelError,
				Title:  "Failed to check assignment status",
				Detail: describe(to.LastErr),
				JobID:  res.JobID,
			}
		}
		return domain.Notification{
			Level:  domain.LevelError,
			Title:  "Processing timeout",
			Detail: "Please check back later or contact support.",
			JobID:  res.JobID,
		}
	}
}

func ledgerStatus(res poller.Resolution) (domain.JobStatus, string) {
	switch res.State {
	case poller.StateSucceeded:
		return domain.JobPendingReview, ""
	case poller.StateFailed:
		return domain.JobFailed, res.Message
	default:
		// Still processing as far as the backend is concerned; resumable.
		return domain.JobProcessing, describe(res.Err)
	}
}
