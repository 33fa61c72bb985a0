package content

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/folio/internal/domain"
)

func TestPostgresServiceIntegration(t *testing.T) {
	dsn := os.Getenv("FOLIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FOLIO_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc, err := NewPostgresService(ctx, dsn)
	require.NoError(t, err)
	defer svc.Close()
	_, err = svc.pool.Exec(ctx, `DELETE FROM content_documents WHERE domain = $1`, string(domain.Testimonials))
	require.NoError(t, err)

	doc, err := svc.Fetch(ctx, domain.Testimonials)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(doc))

	op, err := CreateOp(domain.Testimonial{Author: "Grace", Quote: "Sharp.", Rating: 5})
	require.NoError(t, err)
	list, err := Writer[[]domain.Testimonial](svc, domain.Testimonials, op)(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].ID)

	_, err = svc.Write(ctx, domain.Testimonials, DeleteOp("missing"))
	assert.True(t, IsNotFound(err))

	fetched, err := Loader[[]domain.Testimonial](svc, domain.Testimonials)(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, fetched)
}
