package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"aqarmatch/server/internal/config"
	"aqarmatch/server/internal/email"
	"aqarmatch/server/internal/services"
	"aqarmatch/server/internal/storage"
)

// Task type names. The expiry sweep re-enqueues itself, so enqueueing it once
// at startup keeps it running for the life of the deployment.
const (
	TypeEmailDelivery     = "email:deliver"
	TypeProposalExpire    = "proposal:expire"
	TypeAttachmentProcess = "attachment:process"
)

// NewClient builds an asynq client on the same Redis the cache uses.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	})
}

// TaskProcessor handles the processing of tasks. It holds the dependencies
// needed by task handlers.
type TaskProcessor struct {
	cfg             *config.Config
	emailSender     email.Sender
	storageService  storage.IS3Storage
	proposalService services.IProposalService
	userService     services.IUserService
	taskClient      *asynq.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	proposalService services.IProposalService,
	userService services.IUserService,
	taskClient *asynq.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		emailSender:     emailSender,
		storageService:  storageService,
		proposalService: proposalService,
		userService:     userService,
		taskClient:      taskClient,
	}
}

// SetupServer configures an Asynq server and handler mux for the given worker
// modes. The caller runs it. Returns nils in API-only mode.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
				"images":   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypeProposalExpire, processor.HandleProposalExpireTask)
		log.Println("Registered background task handlers.")
	}

	if isImageWorker {
		mux.HandleFunc(TypeAttachmentProcess, processor.HandleAttachmentProcessTask)
		log.Println("Registered attachment processing task handlers.")
	}

	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// EmailTaskPayload carries a rendered notification email.
type EmailTaskPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewEmailDeliveryTask builds an email delivery task.
func NewEmailDeliveryTask(to, subject, body string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailTaskPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email payload: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, payload), nil
}

// HandleEmailDeliveryTask sends a queued notification email.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		// Recipients without a contact email simply get no notification.
		return nil
	}

	rawMessage := email.BuildMessage(p.cfg.SmtpFromAddress, []string{payload.To}, payload.Subject, payload.Body)
	if err := p.emailSender.Send(ctx, []string{payload.To}, payload.Subject, rawMessage); err != nil {
		log.Printf("Email sending failed (will retry): %v", err)
		return err
	}
	return nil
}

// HandleProposalExpireTask sweeps stale PENDING proposals into EXPIRED, then
// re-enqueues itself to run again after the configured sweep period.
func (p *TaskProcessor) HandleProposalExpireTask(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().UTC().Add(-p.cfg.ProposalMaxAge)
	expired, err := p.proposalService.ExpireStaleProposals(ctx, cutoff)
	if err != nil {
		log.Printf("Proposal expiry sweep failed: %v", err)
		return err
	}
	if expired > 0 {
		log.Printf("Proposal expiry sweep moved %d proposals to EXPIRED.", expired)
	}

	taskInfo, err := p.taskClient.EnqueueContext(ctx, t, asynq.ProcessIn(p.cfg.ProposalSweepPeriod))
	if err != nil {
		log.Printf("ERROR failed to re-enqueue proposal expiry sweep: %v", err)
		return err
	}
	log.Printf("Re-enqueued proposal expiry sweep %s to run in %v.", taskInfo.ID, p.cfg.ProposalSweepPeriod)
	return nil
}

// AttachmentTaskPayload identifies an uploaded attachment awaiting normalization.
type AttachmentTaskPayload struct {
	S3Key      string `json:"s3_key"`
	ProposalID string `json:"proposal_id"`
}

// NewAttachmentProcessTask builds an attachment normalization task for the
// images queue.
func NewAttachmentProcessTask(s3Key, proposalID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AttachmentTaskPayload{S3Key: s3Key, ProposalID: proposalID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attachment payload: %w", err)
	}
	return asynq.NewTask(TypeAttachmentProcess, payload, asynq.Queue("images")), nil
}

// HandleAttachmentProcessTask normalizes an uploaded attachment image and
// records its key on the proposal. Images over the configured dimension are
// shrunk and re-encoded as JPEG. Non-image attachments are recorded as-is.
func (p *TaskProcessor) HandleAttachmentProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AttachmentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal attachment task payload: %v: %w", err, asynq.SkipRetry)
	}

	data, err := p.storageService.DownloadObject(ctx, payload.S3Key)
	if err != nil {
		return fmt.Errorf("failed to download attachment %s: %w", payload.S3Key, err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(data)) > maxSizeBytes {
		log.Printf("Attachment %s exceeds max size (%d > %d bytes), deleting.", payload.S3Key, len(data), maxSizeBytes)
		if delErr := p.storageService.DeleteObject(ctx, payload.S3Key); delErr != nil {
			log.Printf("ERROR failed to delete oversized attachment %s: %v", payload.S3Key, delErr)
		}
		return fmt.Errorf("attachment exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		maxDim := uint(p.cfg.ImageMaxDimension)
		if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
			log.Printf("Resizing attachment %s (%s, %dx%d)", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())
			resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
				return fmt.Errorf("failed to re-encode resized attachment %s: %w", payload.S3Key, err)
			}
			if err := p.storageService.UploadObject(ctx, payload.S3Key, "image/jpeg", buf.Bytes()); err != nil {
				return fmt.Errorf("failed to upload processed attachment: %w", err)
			}
		}
	}
	// Decode failures mean a non-image attachment (PDF etc); keep it untouched.

	if err := p.proposalService.AddAttachmentKey(ctx, payload.ProposalID, payload.S3Key); err != nil {
		return fmt.Errorf("failed to record attachment %s on proposal %s: %w", payload.S3Key, payload.ProposalID, err)
	}

	log.Printf("Attachment task processed: Key=%s, ProposalID=%s", payload.S3Key, payload.ProposalID)
	return nil
}
