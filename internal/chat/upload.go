package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tripline/chat-server/internal/blob"
)

// UploadState tracks a task through the pipeline.
type UploadState string

const (
	UploadPending   UploadState = "pending"
	UploadUploading UploadState = "uploading"
	UploadCompleted UploadState = "completed"
	UploadFailed    UploadState = "failed"
)

// UploadProgress is the event type of an upload stream. Percent is
// monotonically non-decreasing; the final event carries either the sent
// Message (completed) or Err (failed/cancelled).
type UploadProgress struct {
	TaskID  string      `json:"task_id"`
	State   UploadState `json:"state"`
	Percent int         `json:"percent"`
	Ref     string      `json:"ref,omitempty"`
	Message *Message    `json:"message,omitempty"`
	Err     error       `json:"-"`
}

// UploadTask is pipeline-owned bookkeeping for one in-flight blob. Ownership
// of the durable reference transfers to the message log on completion.
type UploadTask struct {
	ID       string
	RoomID   string
	SenderID string
	State    UploadState
	Percent  int
}

// Uploader streams blobs to the blob store and, on success, appends the
// resulting reference to the message log as a media message. Failures and
// cancellations never produce a message.
type Uploader struct {
	blobs    blob.Store
	messages *MessageLog
	maxBytes int64
	log      *zerolog.Logger

	mu    sync.Mutex
	tasks map[string]*UploadTask
}

// NewUploader creates an upload pipeline. maxBytes caps accepted blob sizes.
func NewUploader(blobs blob.Store, messages *MessageLog, maxBytes int64, logger *zerolog.Logger) *Uploader {
	return &Uploader{
		blobs:    blobs,
		messages: messages,
		maxBytes: maxBytes,
		log:      logger,
		tasks:    make(map[string]*UploadTask),
	}
}

// MediaTypeFor maps a MIME content type to the message type a successful
// upload produces. Unsupported types are rejected before any byte is written.
func MediaTypeFor(contentType string) (MessageType, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return TypeImage, nil
	case strings.HasPrefix(ct, "audio/"):
		return TypeVoice, nil
	case strings.HasPrefix(ct, "application/"), strings.HasPrefix(ct, "text/"):
		return TypeDocument, nil
	default:
		return "", validationError(ErrCodeUnsupportedMedia, fmt.Sprintf("unsupported media type %q", contentType))
	}
}

// Upload validates the blob, then streams it in the background, reporting
// progress on the returned channel. Multiple uploads for the same room may
// run concurrently; each task is tracked independently and message order is
// decided by whichever write completes first.
func (u *Uploader) Upload(ctx context.Context, roomID string, sender UserRef, b blob.Blob) (<-chan UploadProgress, error) {
	if err := validateUserRef(sender); err != nil {
		return nil, err
	}
	msgType, err := MediaTypeFor(b.ContentType)
	if err != nil {
		return nil, err
	}
	if b.Size <= 0 {
		return nil, validationError(ErrCodeEmptyPayload, "blob is empty")
	}
	if u.maxBytes > 0 && b.Size > u.maxBytes {
		return nil, validationError(ErrCodeBlobTooLarge, fmt.Sprintf("blob of %d bytes exceeds the %d byte limit", b.Size, u.maxBytes))
	}

	task := &UploadTask{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		SenderID: sender.ID,
		State:    UploadPending,
	}
	u.track(task)

	out := make(chan UploadProgress, 16)
	go u.run(ctx, task, sender, msgType, b, out)
	return out, nil
}

// Task returns a snapshot of an in-flight or finished task.
func (u *Uploader) Task(id string) (UploadTask, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	t, ok := u.tasks[id]
	if !ok {
		return UploadTask{}, false
	}
	return *t, true
}

func (u *Uploader) run(ctx context.Context, task *UploadTask, sender UserRef, msgType MessageType, b blob.Blob, out chan<- UploadProgress) {
	defer close(out)

	emit := func(p UploadProgress) {
		p.TaskID = task.ID
		select {
		case out <- p:
		case <-ctx.Done():
		}
	}

	u.setState(task, UploadUploading, 0)
	emit(UploadProgress{State: UploadUploading, Percent: 0})

	lastPercent := 0
	ref, err := u.blobs.Put(ctx, b, func(written int64) {
		percent := int(written * 100 / b.Size)
		if percent > 100 {
			percent = 100
		}
		// Monotone: a retried chunk never walks the bar backwards.
		if percent <= lastPercent {
			return
		}
		lastPercent = percent
		u.setState(task, UploadUploading, percent)
		emit(UploadProgress{State: UploadUploading, Percent: percent})
	})
	if err != nil {
		u.setState(task, UploadFailed, lastPercent)
		u.log.Warn().Err(err).Str("task_id", task.ID).Str("room_id", task.RoomID).Msg("upload failed")
		emit(UploadProgress{State: UploadFailed, Percent: lastPercent, Err: transientError("upload blob", err)})
		return
	}
	if ctx.Err() != nil {
		// Cancelled after the write raced to completion: still no message.
		u.setState(task, UploadFailed, lastPercent)
		return
	}

	// The durable reference is handed to the message log; the send reuses the
	// caller's context so a cancelled upload cannot produce a message.
	msg, err := u.messages.Send(ctx, task.RoomID, sender, msgType, ref.URL)
	if err != nil {
		u.setState(task, UploadFailed, 100)
		u.log.Warn().Err(err).Str("task_id", task.ID).Str("room_id", task.RoomID).Msg("send after upload failed")
		emit(UploadProgress{State: UploadFailed, Percent: 100, Ref: ref.URL, Err: err})
		return
	}

	u.setState(task, UploadCompleted, 100)
	u.log.Debug().
		Str("task_id", task.ID).
		Str("room_id", task.RoomID).
		Str("ref", ref.URL).
		Msg("upload completed")
	emit(UploadProgress{State: UploadCompleted, Percent: 100, Ref: ref.URL, Message: msg})
}

func (u *Uploader) track(task *UploadTask) {
	u.mu.Lock()
	u.tasks[task.ID] = task
	u.mu.Unlock()
}

func (u *Uploader) setState(task *UploadTask, state UploadState, percent int) {
	u.mu.Lock()
	task.State = state
	if percent > task.Percent {
		task.Percent = percent
	}
	u.mu.Unlock()
}
