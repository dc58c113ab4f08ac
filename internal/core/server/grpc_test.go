package server

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/mailscore/internal/core/api"
	"github.com/solatis/mailscore/internal/core/auth"
	"github.com/solatis/mailscore/internal/core/config"
	"github.com/solatis/mailscore/internal/score"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte(strings.Repeat("s", 32))

// keyQueries knows a single API key hash.
type keyQueries struct {
	hash []byte
}

func (k *keyQueries) Get(name string, dest interface{}, args ...interface{}) error {
	if string(args[0].([]byte)) != string(k.hash) {
		return sql.ErrNoRows
	}
	row := reflect.ValueOf(dest).Elem()
	row.FieldByName("APIKeyID").SetString("k1")
	row.FieldByName("Name").SetString("test")
	return nil
}

func (k *keyQueries) Exec(name string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func startServer(t *testing.T, authenticator *auth.Authenticator) *grpc.ClientConn {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := score.NewEngine(score.NewStore(), score.DefaultThresholds(), score.WithLogger(quiet))
	svc, err := api.NewScoringService(engine, api.WithLogger(quiet))
	require.NoError(t, err)

	cfg := config.DefaultConfig().Server
	srv, err := NewGRPCServer(&cfg, svc, authenticator)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewGRPCServer_NilArguments(t *testing.T) {
	_, err := NewGRPCServer(nil, nil, nil)
	assert.Error(t, err)

	cfg := config.DefaultConfig().Server
	_, err = NewGRPCServer(&cfg, nil, nil)
	assert.Error(t, err)
}

func TestGRPCServer_RoundTrip(t *testing.T) {
	conn := startServer(t, nil)
	client := api.NewClient(conn)
	ctx := context.Background()

	_, err := client.AddRule(ctx, "~s report", "25")
	require.NoError(t, err)

	out, err := client.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, out.Fields["rules"].GetListValue().GetValues(), 1)

	out, err = client.Score(ctx, map[string]interface{}{
		"messages": []interface{}{
			map[string]interface{}{"key": "a", "envelope": map[string]interface{}{"subject": "weekly report"}},
		},
	})
	require.NoError(t, err)
	first := out.Fields["results"].GetListValue().GetValues()[0].GetStructValue()
	assert.Equal(t, float64(25), first.Fields["score"].GetNumberValue())

	_, err = client.Compile(ctx, "~z")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCServer_Health(t *testing.T) {
	conn := startServer(t, nil)
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: api.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestGRPCServer_Auth(t *testing.T) {
	key, hash, err := auth.GenerateAPIKey(testSecretID, testSecret)
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: testSecret}, &keyQueries{hash: hash})

	conn := startServer(t, authenticator)
	client := api.NewClient(conn)

	_, err = client.ListRules(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", key)
	_, err = client.ListRules(ctx)
	assert.NoError(t, err)

	// Health stays open without a key.
	_, err = grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	assert.NoError(t, err)
}

func TestTimeoutInterceptor(t *testing.T) {
	intercept := TimeoutInterceptor(time.Minute)
	var deadline bool
	_, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			_, deadline = ctx.Deadline()
			return nil, nil
		})
	require.NoError(t, err)
	assert.True(t, deadline)
}
