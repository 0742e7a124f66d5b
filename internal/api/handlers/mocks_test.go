package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"aqarmatch/server/internal/domain"
	"aqarmatch/server/internal/models"
	"aqarmatch/server/internal/services"
)

// --- Mocks ---

// MockRequestService
type MockRequestService struct {
	mock.Mock
}

func (m *MockRequestService) CreateRequest(ctx context.Context, ownerID string, input services.CreateRequestInput) (*models.MarketingRequest, error) {
	args := m.Called(ctx, ownerID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketingRequest), args.Error(1)
}

func (m *MockRequestService) FindRequestByID(ctx context.Context, id string, include services.RequestInclude) (*models.MarketingRequest, error) {
	args := m.Called(ctx, id, include)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketingRequest), args.Error(1)
}

func (m *MockRequestService) ListRequests(ctx context.Context, filter services.RequestFilter) ([]models.MarketingRequest, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MarketingRequest), args.Error(1)
}

func (m *MockRequestService) UpdateStatus(ctx context.Context, id, actorID string, isStaff bool, newStatus domain.RequestStatus, notes string) (*models.MarketingRequest, error) {
	args := m.Called(ctx, id, actorID, isStaff, newStatus, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketingRequest), args.Error(1)
}

// MockProposalService
type MockProposalService struct {
	mock.Mock
}

func (m *MockProposalService) CreateProposal(ctx context.Context, requestID, agentID string, input services.CreateProposalInput) (*models.MarketingProposal, error) {
	args := m.Called(ctx, requestID, agentID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketingProposal), args.Error(1)
}

func (m *MockProposalService) FindProposalByID(ctx context.Context, requestID, proposalID string) (*models.MarketingProposal, error) {
	args := m.Called(ctx, requestID, proposalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketingProposal), args.Error(1)
}

func (m *MockProposalService) ListProposalsByRequest(ctx context.Context, requestID, actorID string, isStaff bool) ([]models.MarketingProposal, error) {
	args := m.Called(ctx, requestID, actorID, isStaff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MarketingProposal), args.Error(1)
}

func (m *MockProposalService) DecideProposal(ctx context.Context, requestID, proposalID, actorID string, isStaff bool, newStatus domain.ProposalStatus) (*models.MarketingProposal, error) {
	args := m.Called(ctx, requestID, proposalID, actorID, isStaff, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketingProposal), args.Error(1)
}

func (m *MockProposalService) AddAttachmentKey(ctx context.Context, proposalID, key string) error {
	args := m.Called(ctx, proposalID, key)
	return args.Error(0)
}

func (m *MockProposalService) ExpireStaleProposals(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) GeneratePresignedPutURL(ctx context.Context, agentID, proposalID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, agentID, proposalID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockS3Storage) DownloadObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockS3Storage) UploadObject(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

func (m *MockS3Storage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
