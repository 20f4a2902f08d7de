// Package helpdesk keeps user accounts, login sessions and a priority queue
// of support tickets in redis.
package helpdesk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("helpdesk: user already exists")
	ErrUserNotFound       = errors.New("helpdesk: user not found")
	ErrInvalidCredentials = errors.New("helpdesk: invalid credentials")
	ErrInvalidToken       = errors.New("helpdesk: invalid or expired token")
	ErrInvalidPriority    = errors.New("helpdesk: priority out of range")
)

const (
	DefaultPrefix     = "helpdesk:"
	DefaultSessionTTL = 24 * time.Hour
	// MaxPriority bounds ticket priorities so queue scores stay exact.
	MaxPriority = 1_000_000
)

// RedisClient captures the subset of redis.Client used by the desk.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HSetNX(ctx context.Context, key, field string, value interface{}) *redis.BoolCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZPopMax(ctx context.Context, key string, count ...int64) *redis.ZSliceCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
}

// Config tunes a Desk.
type Config struct {
	Prefix     string
	SessionTTL time.Duration
	BcryptCost int
	Logger     *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// User is a registered account. The password hash never leaves the package.
type User struct {
	Username   string
	FullName   string
	Privileges int
	CreatedAt  time.Time
}

// UserUpdate changes the non-nil fields of a user.
type UserUpdate struct {
	FullName   *string
	Password   *string
	Privileges *int
}

// Ticket is a support request. Higher priorities are attended first.
type Ticket struct {
	ID          int64
	Username    string
	Title       string
	Description string
	Priority    int
	CreatedAt   time.Time
}

// Desk is safe for concurrent use.
type Desk struct {
	client RedisClient
	cfg    Config
	now    func() time.Time
}

// New returns a Desk over client.
func New(client RedisClient, cfg Config) (*Desk, error) {
	if client == nil {
		return nil, errors.New("helpdesk: redis client is required")
	}
	cfg = cfg.withDefaults()
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("helpdesk: bcrypt cost %d out of range", cfg.BcryptCost)
	}
	return &Desk{client: client, cfg: cfg, now: time.Now}, nil
}

func (d *Desk) userKey(username string) string { return d.cfg.Prefix + "user:" + username }
func (d *Desk) sessionKey(token string) string { return d.cfg.Prefix + "session:" + token }
func (d *Desk) ticketKey(id int64) string {
	return d.cfg.Prefix + "ticket:" + strconv.FormatInt(id, 10)
}
func (d *Desk) queueKey() string     { return d.cfg.Prefix + "tickets" }
func (d *Desk) ticketSeqKey() string { return d.cfg.Prefix + "ticket:seq" }

// Register creates an account. The password is stored as a bcrypt hash.
func (d *Desk) Register(ctx context.Context, username, fullName, password string, privileges int) error {
	if username == "" || password == "" {
		return errors.New("helpdesk: username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("helpdesk: hash password: %w", err)
	}
	key := d.userKey(username)
	created, err := d.client.HSetNX(ctx, key, "username", username).Result()
	if err != nil {
		return fmt.Errorf("helpdesk: register %s: %w", username, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}
	err = d.client.HSet(ctx, key,
		"full_name", fullName,
		"password", string(hash),
		"privileges", strconv.Itoa(privileges),
		"created_at", d.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		_ = d.client.Del(ctx, key).Err()
		return fmt.Errorf("helpdesk: register %s: %w", username, err)
	}
	d.cfg.Logger.Info("user registered", zap.String("username", username), zap.Int("privileges", privileges))
	return nil
}

// UserInfo returns the account for username.
func (d *Desk) UserInfo(ctx context.Context, username string) (User, bool, error) {
	u, _, ok, err := d.loadUser(ctx, username)
	return u, ok, err
}

// EditUser applies update to an existing account.
func (d *Desk) EditUser(ctx context.Context, username string, update UserUpdate) error {
	if _, _, ok, err := d.loadUser(ctx, username); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	var fields []interface{}
	if update.FullName != nil {
		fields = append(fields, "full_name", *update.FullName)
	}
	if update.Privileges != nil {
		fields = append(fields, "privileges", strconv.Itoa(*update.Privileges))
	}
	if update.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), d.cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("helpdesk: hash password: %w", err)
		}
		fields = append(fields, "password", string(hash))
	}
	if len(fields) == 0 {
		return nil
	}
	if err := d.client.HSet(ctx, d.userKey(username), fields...).Err(); err != nil {
		return fmt.Errorf("helpdesk: edit %s: %w", username, err)
	}
	return nil
}

// Login checks the password and opens a session, returning the user's
// privileges and a session token.
func (d *Desk) Login(ctx context.Context, username, password string) (int, string, error) {
	u, hash, ok, err := d.loadUser(ctx, username)
	if err != nil {
		return 0, "", err
	}
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		d.cfg.Logger.Debug("login rejected", zap.String("username", username))
		return 0, "", ErrInvalidCredentials
	}
	token := uuid.NewString()
	if err := d.client.Set(ctx, d.sessionKey(token), username, d.cfg.SessionTTL).Err(); err != nil {
		return 0, "", fmt.Errorf("helpdesk: open session: %w", err)
	}
	d.cfg.Logger.Debug("session opened", zap.String("username", username))
	return u.Privileges, token, nil
}

// LoginWithToken resumes a session, extending its lifetime, and returns the
// user's current privileges.
func (d *Desk) LoginWithToken(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	key := d.sessionKey(token)
	username, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("helpdesk: read session: %w", err)
	}
	u, _, ok, err := d.loadUser(ctx, username)
	if err != nil {
		return 0, err
	}
	if !ok {
		_ = d.client.Del(ctx, key).Err()
		return 0, ErrInvalidToken
	}
	if err := d.client.Expire(ctx, key, d.cfg.SessionTTL).Err(); err != nil {
		return 0, fmt.Errorf("helpdesk: refresh session: %w", err)
	}
	return u.Privileges, nil
}

// Logout ends the session. Unknown tokens are ignored.
func (d *Desk) Logout(ctx context.Context, token string) error {
	if err := d.client.Del(ctx, d.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("helpdesk: logout: %w", err)
	}
	return nil
}

// CreateTicket queues a ticket for an existing user. The queue score is the
// priority alone; ties are broken by ticket id through the member encoding,
// so ordering holds for any id.
func (d *Desk) CreateTicket(ctx context.Context, username, title, description string, priority int) (Ticket, error) {
	if priority < 0 || priority > MaxPriority {
		return Ticket{}, fmt.Errorf("%w: %d", ErrInvalidPriority, priority)
	}
	if _, _, ok, err := d.loadUser(ctx, username); err != nil {
		return Ticket{}, err
	} else if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	seq, err := d.client.Incr(ctx, d.ticketSeqKey()).Result()
	if err != nil {
		return Ticket{}, fmt.Errorf("helpdesk: ticket id: %w", err)
	}
	t := Ticket{
		ID:          seq,
		Username:    username,
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   d.now().UTC(),
	}
	err = d.client.HSet(ctx, d.ticketKey(seq),
		"username", t.Username,
		"title", t.Title,
		"description", t.Description,
		"priority", strconv.Itoa(t.Priority),
		"created_at", t.CreatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return Ticket{}, fmt.Errorf("helpdesk: store ticket: %w", err)
	}
	if err := d.client.ZAdd(ctx, d.queueKey(), redis.Z{Score: float64(priority), Member: queueMember(seq)}).Err(); err != nil {
		_ = d.client.Del(ctx, d.ticketKey(seq)).Err()
		return Ticket{}, fmt.Errorf("helpdesk: queue ticket: %w", err)
	}
	d.cfg.Logger.Info("ticket created", zap.Int64("id", seq), zap.String("username", username), zap.Int("priority", priority))
	return t, nil
}

// AttendTicket removes and returns the most urgent ticket. It reports false
// when the queue is empty.
func (d *Desk) AttendTicket(ctx context.Context) (Ticket, bool, error) {
	popped, err := d.client.ZPopMax(ctx, d.queueKey(), 1).Result()
	if err != nil {
		return Ticket{}, false, fmt.Errorf("helpdesk: pop ticket: %w", err)
	}
	if len(popped) == 0 {
		d.cfg.Logger.Debug("no tickets to attend")
		return Ticket{}, false, nil
	}
	member := fmt.Sprint(popped[0].Member)
	id, err := queueTicketID(member)
	if err != nil {
		return Ticket{}, false, err
	}
	key := d.ticketKey(id)
	fields, err := d.client.HGetAll(ctx, key).Result()
	if err != nil {
		// put it back so the ticket is not lost
		if rerr := d.client.ZAdd(ctx, d.queueKey(), popped[0]).Err(); rerr != nil {
			d.cfg.Logger.Error("ticket requeue failed", zap.Int64("id", id), zap.Error(rerr))
			err = errors.Join(err, rerr)
		}
		return Ticket{}, false, fmt.Errorf("helpdesk: load ticket %d: %w", id, err)
	}
	if err := d.client.Del(ctx, key).Err(); err != nil {
		d.cfg.Logger.Warn("ticket cleanup failed", zap.Int64("id", id), zap.Error(err))
	}
	t := Ticket{
		ID:          id,
		Username:    fields["username"],
		Title:       fields["title"],
		Description: fields["description"],
	}
	t.Priority, _ = strconv.Atoi(fields["priority"])
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	d.cfg.Logger.Info("ticket attended", zap.Int64("id", id), zap.String("username", t.Username))
	return t, true, nil
}

// queueMember encodes a ticket id so that, among equal scores, ZPOPMAX's
// reverse lexicographic order yields the oldest ticket first.
func queueMember(id int64) string {
	return fmt.Sprintf("%019d", math.MaxInt64-id)
}

func queueTicketID(member string) (int64, error) {
	n, err := strconv.ParseInt(member, 10, 64)
	if err != nil || len(member) != 19 {
		return 0, fmt.Errorf("helpdesk: bad queue member %q", member)
	}
	return math.MaxInt64 - n, nil
}

// Pending reports how many tickets are queued.
func (d *Desk) Pending(ctx context.Context) (int64, error) {
	n, err := d.client.ZCard(ctx, d.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("helpdesk: count tickets: %w", err)
	}
	return n, nil
}

func (d *Desk) loadUser(ctx context.Context, username string) (User, []byte, bool, error) {
	if username == "" {
		return User{}, nil, false, nil
	}
	fields, err := d.client.HGetAll(ctx, d.userKey(username)).Result()
	if err != nil {
		return User{}, nil, false, fmt.Errorf("helpdesk: load user %s: %w", username, err)
	}
	if len(fields) == 0 || fields["password"] == "" {
		return User{}, nil, false, nil
	}
	u := User{Username: username, FullName: fields["full_name"]}
	u.Privileges, _ = strconv.Atoi(fields["privileges"])
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	return u, []byte(fields["password"]), true, nil
}
