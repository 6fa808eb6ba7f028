package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/config"
	"github.com/dmitrijs2005/driveingest/internal/server/media"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/files"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/folders"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/users"
	"github.com/dmitrijs2005/driveingest/internal/server/sessions"
	"github.com/dmitrijs2005/driveingest/internal/server/storage"
	"github.com/redis/go-redis/v9"
)

// -------- repository fakes --------

type fakeUsers struct {
	users.Repository
	byID map[string]*models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

type fakeFiles struct {
	files.Repository
	mu sync.Mutex

	usage    int64
	usageErr error
	existing map[string]*models.DriveFile // userID + "/" + md5
	findErr  error
	created  []*models.DriveFile
	marked   []string
	create   error
}

func (f *fakeFiles) Usage(context.Context, string) (int64, error) {
	return f.usage, f.usageErr
}

func (f *fakeFiles) FindByMD5(_ context.Context, userID, md5 string) (*models.DriveFile, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if file, ok := f.existing[userID+"/"+md5]; ok {
		return file, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeFiles) MarkSensitive(_ context.Context, id string) error {
	f.marked = append(f.marked, id)
	return nil
}

func (f *fakeFiles) Create(_ context.Context, file *models.DriveFile) error {
	if f.create != nil {
		return f.create
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, file)
	return nil
}

type fakeFolders struct {
	folders.Repository
	owned map[string]string // folder id -> owner id
}

func (f *fakeFolders) GetOwned(_ context.Context, id, userID string) (*models.DriveFolder, error) {
	if owner, ok := f.owned[id]; ok && owner == userID {
		return &models.DriveFolder{ID: id, UserID: &owner}, nil
	}
	return nil, common.ErrorNotFound
}

type fakeManager struct {
	repomanager.RepositoryManager
	users   *fakeUsers
	files   *fakeFiles
	folders *fakeFolders
}

func (m *fakeManager) Users(dbx.DBTX) users.Repository     { return m.users }
func (m *fakeManager) Files(dbx.DBTX) files.Repository     { return m.files }
func (m *fakeManager) Folders(dbx.DBTX) folders.Repository { return m.folders }

// -------- collaborator fakes --------

type fakePolicy struct {
	meta     models.Meta
	policies models.RolePolicies
	profiles map[string]*models.UserProfile
	err      error
}

func (f *fakePolicy) Meta(context.Context) (*models.Meta, error) {
	if f.err != nil {
		return nil, f.err
	}
	m := f.meta
	return &m, nil
}

func (f *fakePolicy) RolePolicies(context.Context, *models.User) (models.RolePolicies, error) {
	return f.policies, f.err
}

func (f *fakePolicy) Profile(_ context.Context, userID string) (*models.UserProfile, error) {
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return &models.UserProfile{UserID: userID}, nil
}

type putCall struct {
	Key  string
	Body []byte
	Opts storage.PutOptions
}

type fakeStorage struct {
	mu sync.Mutex

	puts      []putCall
	opened    map[string]storage.PutOptions // upload id -> options
	parts     map[string][][]byte
	completed map[string][]models.UploadPart
	aborted   []string
	calls     int

	putErr      error
	openErr     error
	partErr     error
	completeErr error
	nextID      int

	// onPart runs before every UploadPart, outside the lock.
	onPart func()
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		opened:    map[string]storage.PutOptions{},
		parts:     map[string][][]byte{},
		completed: map[string][]models.UploadPart{},
	}
}

func (f *fakeStorage) Put(_ context.Context, key string, body []byte, opts storage.PutOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, putCall{Key: key, Body: body, Opts: opts})
	return nil
}

func (f *fakeStorage) OpenMultipart(_ context.Context, _ string, opts storage.PutOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.openErr != nil {
		return "", f.openErr
	}
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.opened[id] = opts
	return id, nil
}

func (f *fakeStorage) UploadPart(_ context.Context, _, uploadID string, number int32, body []byte) (string, error) {
	if f.onPart != nil {
		f.onPart()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.partErr != nil {
		return "", f.partErr
	}
	f.parts[uploadID] = append(f.parts[uploadID], body)
	return fmt.Sprintf(`"etag-%d"`, number), nil
}

func (f *fakeStorage) CompleteMultipart(_ context.Context, _, uploadID string, parts []models.UploadPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed[uploadID] = append([]models.UploadPart(nil), parts...)
	return nil
}

func (f *fakeStorage) AbortMultipart(_ context.Context, _, uploadID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.aborted = append(f.aborted, uploadID)
}

func (f *fakeStorage) Get(context.Context, string, int64) ([]byte, error) {
	return nil, common.ErrorNotFound
}

func (f *fakeStorage) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

func (f *fakeStorage) Ping(context.Context) error { return nil }

type fakeExtractor struct {
	mu      sync.Mutex
	info    media.Info
	err     error
	sources []media.Source
	opts    []media.Options
}

func (f *fakeExtractor) Extract(_ context.Context, src media.Source, opts media.Options) (*media.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	info := f.info
	return &info, nil
}

type published struct {
	Stream string
	UserID string
	Event  string
}

type fakePublisher struct {
	events []published
}

func (f *fakePublisher) PublishMainStream(_ context.Context, userID, event string, _ any) error {
	f.events = append(f.events, published{"main", userID, event})
	return nil
}

func (f *fakePublisher) PublishDriveStream(_ context.Context, userID, event string, _ any) error {
	f.events = append(f.events, published{"drive", userID, event})
	return nil
}

type seqIDs struct{ n int }

func (s *seqIDs) New() string {
	s.n++
	return fmt.Sprintf("file%d", s.n)
}

func (s *seqIDs) Parse(string) (time.Time, error) {
	return time.Time{}, errors.New("sequential ids carry no time")
}

// fakeTx counts units of work and the rows created inside them.
type fakeTx struct {
	files   *fakeFiles
	units   int
	failed  int
	created int
}

func (f *fakeTx) run(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	f.units++
	before := len(f.files.created)
	err := fn(ctx, nil)
	if err != nil {
		f.failed++
		return err
	}
	f.created += len(f.files.created) - before
	return nil
}

// -------- environment --------

type testEnv struct {
	cfg       *config.Config
	alice     *models.User
	manager   *fakeManager
	policy    *fakePolicy
	storage   *fakeStorage
	extractor *fakeExtractor
	publisher *fakePublisher
	tx        *fakeTx
	store     *sessions.RedisStore
	redis     *miniredis.Miniredis

	preflight *PreflightService
	registrar *Registrar
	uploads   *UploadService
	create    *CreateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	alice := &models.User{ID: "alice", Username: "alice"}
	env := &testEnv{
		cfg:   cfg,
		alice: alice,
		manager: &fakeManager{
			users:   &fakeUsers{byID: map[string]*models.User{"alice": alice}},
			files:   &fakeFiles{existing: map[string]*models.DriveFile{}},
			folders: &fakeFolders{owned: map[string]string{"f1": "alice"}},
		},
		policy: &fakePolicy{
			meta: models.Meta{
				SensitiveMediaDetection:            models.DetectionAll,
				SensitiveMediaDetectionSensitivity: models.SensitivityMedium,
			},
			policies: models.DefaultRolePolicies(),
		},
		storage:   newFakeStorage(),
		extractor: &fakeExtractor{info: media.Info{Width: 10, Height: 20}},
		publisher: &fakePublisher{},
		store:     sessions.NewRedisStore(rdb),
		redis:     mr,
	}

	env.tx = &fakeTx{files: env.manager.files}

	logger := logging.Nop()
	env.preflight = NewPreflightService(nil, env.manager, env.policy, logger)
	env.registrar = NewRegistrar(RegistrarDeps{
		Tx:            env.tx.run,
		Repomanager:   env.manager,
		Policy:        env.policy,
		Extractor:     env.extractor,
		Storage:       env.storage,
		Publisher:     env.publisher,
		IDs:           &seqIDs{},
		Prefix:        cfg.Prefix,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})
	env.uploads = NewUploadService(nil, env.manager, env.store, env.storage, env.preflight, env.registrar, cfg, logger)
	env.create = NewCreateService(env.storage, env.preflight, env.registrar, cfg.Prefix, logger)
	return env
}

// pngPart returns size bytes that sniff as a PNG.
func pngPart(size int) []byte {
	b := make([]byte, size)
	copy(b, "\x89PNG\r\n\x1a\n")
	for i := 8; i < size; i++ {
		b[i] = byte(i % 251)
	}
	return b
}

// filler returns size bytes with no recognizable signature.
func filler(size int, seed byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = seed + byte(i%7)
	}
	return b
}

func ptr[T any](v T) *T { return &v }
