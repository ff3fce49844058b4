package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"smartcheck/internal/adapters/api"
	"smartcheck/internal/adapters/store/bunstore"
	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/testutil/fakeapi"
)

// samplePDF has two pages as far as the fake API is concerned.
const samplePDF = "%PDF-1.7\n1 0 obj\n<< /Type /Page\n>>\n2 0 obj\n<< /Type /Page\n>>\n%%EOF\n"

func loggedInClient(t *testing.T, srv *fakeapi.Server) *api.Client {
	t.Helper()
	srv.AddUser("teller", "secret", models.RoleUser)
	c := api.NewClient(srv.URL, api.WithRetries(0, 0))
	_, err := c.Login(context.Background(), "teller", "secret")
	require.NoError(t, err)
	return c
}

func memStore(t *testing.T) *bunstore.BunStore {
	t.Helper()
	store, err := bunstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}
