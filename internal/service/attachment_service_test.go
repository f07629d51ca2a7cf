package service_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/domain"
	"github.com/stroyteh/kanban-service/internal/repository"
	"github.com/stroyteh/kanban-service/internal/service"
	"github.com/stroyteh/kanban-service/internal/storage"
	"github.com/stroyteh/kanban-service/internal/testutil"
	"go.uber.org/zap"
)

func newAttachmentService(t *testing.T, h *harness) *service.AttachmentService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return service.NewAttachmentService(
		h.db,
		repository.NewAttachmentRepository(h.db),
		repository.NewCardRepository(h.db),
		repository.NewEventRepository(h.db),
		h.publisher,
		store,
		zap.NewNop(),
	)
}

func TestAttachmentService_UploadDownloadDelete(t *testing.T) {
	h := newHarness(t)
	svc := newAttachmentService(t, h)
	ctx := context.Background()
	board := h.board(t, "files", "new")
	card := h.card(t, board, "new", domain.CardTypeSupplyCase)
	h.publisher.take()

	a, err := svc.Upload(ctx, card.ID, "invoice.PDF", "application/pdf", strings.NewReader("%PDF-1.7"), testActor)
	require.NoError(t, err)
	assert.Equal(t, int64(8), a.Size)
	assert.True(t, strings.HasSuffix(a.StoragePath, ".pdf"))
	assert.Equal(t, "tester", a.UploadedBy)

	assert.Equal(t, int64(1), testutil.CountEvents(t, h.db, card.ID, domain.EventAttachmentAdded))
	assert.Len(t, h.publisher.take(), 1)

	_, reader, err := svc.Download(ctx, a.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, reader.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(body))

	list, err := svc.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAttachmentService_UploadToArchivedOrMissingCard(t *testing.T) {
	h := newHarness(t)
	svc := newAttachmentService(t, h)
	ctx := context.Background()
	board := h.board(t, "files_archived", "new")
	card := h.card(t, board, "new", domain.CardTypeGeneric)
	_, err := h.cards.Archive(ctx, card.ID, testActor)
	require.NoError(t, err)

	_, err = svc.Upload(ctx, card.ID, "a.txt", "text/plain", strings.NewReader("x"), testActor)
	assert.ErrorIs(t, err, service.ErrConflict)

	_, err = svc.Upload(ctx, 4040, "a.txt", "text/plain", strings.NewReader("x"), testActor)
	requireValidationField(t, err, "card_id")
}
