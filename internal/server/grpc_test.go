package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/guideline-extractor/internal/tasks"
)

func newGRPCClient(t *testing.T, sub Submitter, submitRoot string) (*ExtractionClient, *tasks.Store, *grpc.ClientConn) {
	t.Helper()
	store := tasks.NewStore()
	if sub == nil {
		mgr := tasks.NewManager(store, fileReader{}, lineExtractor{}, nil)
		t.Cleanup(func() { mgr.Shutdown(context.Background()) })
		sub = mgr
	}

	lis := bufconn.Listen(1 << 20)
	gs, _ := NewGRPCServer(NewExtractionService(store, sub, submitRoot, nil), nil)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewExtractionClient(conn), store, conn
}

func TestGRPC_Health(t *testing.T) {
	_, _, conn := newGRPCClient(t, nil, "")
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPC_SubmitPathAndPoll(t *testing.T) {
	root := t.TempDir()
	client, _, _ := newGRPCClient(t, nil, root)
	ctx := context.Background()

	path := filepath.Join(root, "guide.md")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	submitted, err := client.SubmitPath(ctx, path)
	require.NoError(t, err)
	id := submitted.GetFields()["task_id"].GetStringValue()
	require.NotEmpty(t, id)
	assert.Equal(t, "guide.md", submitted.GetFields()["tag"].GetStringValue())

	require.Eventually(t, func() bool {
		got, err := client.GetTask(ctx, id)
		return err == nil && got.GetFields()["status"].GetStringValue() == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	got, err := client.GetTask(ctx, id)
	require.NoError(t, err)
	result := got.GetFields()["result"].GetStructValue()
	require.NotNil(t, result)
	assert.EqualValues(t, 3, result.GetFields()["count"].GetNumberValue())

	_, err = os.Stat(path)
	assert.NoError(t, err, "submitted paths are not removed")
}

func TestGRPC_SubmitPathValidation(t *testing.T) {
	root := t.TempDir()
	client, _, _ := newGRPCClient(t, nil, root)
	ctx := context.Background()

	_, err := client.SubmitPath(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SubmitPath(ctx, filepath.Join(root, "guide.docx"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SubmitPath(ctx, filepath.Join(root, "missing.pdf"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_SubmitPathOutsideRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.Mkdir(root, 0o755))
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("not for the model"), 0o644))
	client, store, _ := newGRPCClient(t, nil, root)
	ctx := context.Background()

	_, err := client.SubmitPath(ctx, outside)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SubmitPath(ctx, "../secret.txt")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	link := filepath.Join(root, "link.txt")
	if os.Symlink(outside, link) == nil {
		_, err = client.SubmitPath(ctx, link)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	}
	assert.Empty(t, store.List())
}

func TestGRPC_SubmitPathRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "guide.txt"), []byte("a\nb\n"), 0o644))
	client, _, _ := newGRPCClient(t, nil, root)

	submitted, err := client.SubmitPath(context.Background(), "guide.txt")
	require.NoError(t, err)
	assert.Equal(t, "guide.txt", submitted.GetFields()["tag"].GetStringValue())
}

func TestGRPC_SubmitPathDisabledWithoutRoot(t *testing.T) {
	client, _, _ := newGRPCClient(t, nil, "")
	path := filepath.Join(t.TempDir(), "guide.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := client.SubmitPath(context.Background(), path)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestGRPC_SubmitPathShuttingDown(t *testing.T) {
	root := t.TempDir()
	client, _, _ := newGRPCClient(t, rejectingSubmitter{err: tasks.ErrShuttingDown}, root)
	path := filepath.Join(root, "guide.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := client.SubmitPath(context.Background(), path)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestGRPC_ListGetDelete(t *testing.T) {
	client, store, _ := newGRPCClient(t, nil, "")
	ctx := context.Background()
	a := store.Create("a.pdf")
	store.Create("b.pdf")

	list, err := client.ListTasks(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.GetFields()["total"].GetNumberValue())
	first := list.GetFields()["tasks"].GetListValue().GetValues()[0].GetStructValue()
	assert.Equal(t, a.ID, first.GetFields()["task_id"].GetStringValue())

	_, err = client.GetTask(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	ok, err := client.DeleteTask(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.DeleteTask(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = client.GetTask(ctx, a.ID)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
