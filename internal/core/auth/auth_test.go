package auth

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("test-secret-with-enough-entropy!")

type fakeRow struct {
	id       string
	name     string
	revoked  bool
	lastUsed time.Time
}

// fakeQueries serves get-api-key-by-hash from a map keyed by hash.
type fakeQueries struct {
	rows    map[string]fakeRow
	getErr  error
	updates int
}

func (f *fakeQueries) Get(name string, dest interface{}, args ...interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	row, ok := f.rows[string(args[0].([]byte))]
	if !ok {
		return sql.ErrNoRows
	}
	v := reflect.ValueOf(dest).Elem()
	v.FieldByName("APIKeyID").SetString(row.id)
	v.FieldByName("Name").SetString(row.name)
	if row.revoked {
		v.FieldByName("RevokedAt").Set(reflect.ValueOf(sql.NullTime{Time: time.Now(), Valid: true}))
	}
	if !row.lastUsed.IsZero() {
		v.FieldByName("LastUsedAt").Set(reflect.ValueOf(sql.NullTime{Time: row.lastUsed, Valid: true}))
	}
	return nil
}

func (f *fakeQueries) Exec(name string, args ...interface{}) (sql.Result, error) {
	if name == "update-last-used" {
		f.updates++
	}
	return nil, nil
}

func newKey(t *testing.T, q *fakeQueries, row fakeRow) string {
	t.Helper()
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v, want nil", err)
	}
	q.rows[string(hash)] = row
	return key
}

func TestParseAPIKey(t *testing.T) {
	valid := FormatAPIKey(testSecretID, strings.Repeat("ab", 32))
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"wrong prefix", strings.Replace(valid, "ms-", "tk-", 1), true},
		{"wrong version", strings.Replace(valid, "-v1-", "-v2-", 1), true},
		{"short secret id", "ms-v1-0123-" + strings.Repeat("ab", 32), true},
		{"upper case hex", "ms-v1-" + strings.ToUpper(testSecretID) + "-" + strings.Repeat("ab", 32), true},
		{"non hex", "ms-v1-" + strings.Repeat("zz", 16) + "-" + strings.Repeat("ab", 32), true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretID, _, err := ParseAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if !tt.wantErr && secretID != testSecretID {
				t.Errorf("ParseAPIKey() secretID = %q, want %q", secretID, testSecretID)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v, want nil", err)
	}
	if _, _, err := ParseAPIKey(key); err != nil {
		t.Fatalf("ParseAPIKey(generated) error = %v, want nil", err)
	}
	if !VerifyHMAC(hash, ComputeHMAC(testSecret, key)) {
		t.Error("VerifyHMAC() = false for the generated hash")
	}
	if VerifyHMAC(hash, ComputeHMAC([]byte("other"), key)) {
		t.Error("VerifyHMAC() = true with a different secret")
	}

	other, _, _ := GenerateAPIKey(testSecretID, testSecret)
	if other == key {
		t.Error("GenerateAPIKey() returned the same key twice")
	}
}

func TestAuthenticate(t *testing.T) {
	q := &fakeQueries{rows: map[string]fakeRow{}}
	good := newKey(t, q, fakeRow{id: "k1", name: "mutt"})
	revoked := newKey(t, q, fakeRow{id: "k2", name: "old", revoked: true})
	unknown := FormatAPIKey(testSecretID, strings.Repeat("cd", 32))
	otherSecret := FormatAPIKey(strings.Repeat("f", 32), strings.Repeat("cd", 32))

	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr error
	}{
		{"valid key", good, "mutt", nil},
		{"revoked key", revoked, "", ErrKeyRevoked},
		{"unknown key", unknown, "", ErrInvalidKey},
		{"unknown secret", otherSecret, "", ErrUnknownKey},
		{"malformed", "nope", "", ErrInvalidKeyFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Authenticate(context.Background(), tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Authenticate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthenticate_LastUsedThrottle(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	q := &fakeQueries{rows: map[string]fakeRow{}}
	recent := newKey(t, q, fakeRow{id: "k1", name: "a", lastUsed: now.Add(-10 * time.Second)})
	stale := newKey(t, q, fakeRow{id: "k2", name: "b", lastUsed: now.Add(-2 * time.Minute)})

	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)
	a.now = func() time.Time { return now }

	if _, err := a.Authenticate(context.Background(), recent); err != nil {
		t.Fatalf("Authenticate() error = %v, want nil", err)
	}
	if q.updates != 0 {
		t.Errorf("updates = %d after recent use, want 0", q.updates)
	}
	if _, err := a.Authenticate(context.Background(), stale); err != nil {
		t.Fatalf("Authenticate() error = %v, want nil", err)
	}
	if q.updates != 1 {
		t.Errorf("updates = %d after stale use, want 1", q.updates)
	}
}

func TestUnaryInterceptor(t *testing.T) {
	q := &fakeQueries{rows: map[string]fakeRow{}}
	good := newKey(t, q, fakeRow{id: "k1", name: "mutt"})
	revoked := newKey(t, q, fakeRow{id: "k2", name: "old", revoked: true})

	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)
	intercept := a.UnaryInterceptor("/grpc.health.v1.Health/Check")

	var gotClient string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		gotClient = ClientFromContext(ctx)
		return "ok", nil
	}

	call := func(method string, md metadata.MD) error {
		ctx := context.Background()
		if md != nil {
			ctx = metadata.NewIncomingContext(ctx, md)
		}
		_, err := intercept(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
		return err
	}

	tests := []struct {
		name   string
		method string
		md     metadata.MD
		want   codes.Code
		client string
	}{
		{"valid", "/mailscore.v1.ScoringService/Score", metadata.Pairs("x-api-key", good), codes.OK, "mutt"},
		{"no metadata", "/mailscore.v1.ScoringService/Score", nil, codes.Unauthenticated, ""},
		{"no key", "/mailscore.v1.ScoringService/Score", metadata.Pairs("other", "x"), codes.Unauthenticated, ""},
		{"revoked", "/mailscore.v1.ScoringService/Score", metadata.Pairs("x-api-key", revoked), codes.PermissionDenied, ""},
		{"skipped", "/grpc.health.v1.Health/Check", nil, codes.OK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClient = ""
			err := call(tt.method, tt.md)
			if status.Code(err) != tt.want {
				t.Fatalf("interceptor code = %v, want %v (err %v)", status.Code(err), tt.want, err)
			}
			if gotClient != tt.client {
				t.Errorf("client = %q, want %q", gotClient, tt.client)
			}
		})
	}
}

func TestUnaryInterceptor_StorageUnavailable(t *testing.T) {
	q := &fakeQueries{rows: map[string]fakeRow{}, getErr: errors.New("connection refused")}
	key, _, _ := GenerateAPIKey(testSecretID, testSecret)

	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, q)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", key))
	_, err := a.UnaryInterceptor()(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/x/Y"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, nil })

	if status.Code(err) != codes.Unavailable {
		t.Fatalf("interceptor code = %v, want Unavailable", status.Code(err))
	}
}
