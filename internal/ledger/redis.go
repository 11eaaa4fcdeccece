package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const showsWithStateKey = "seat_states:shows"

// abandonTimeout bounds the cleanup of a claim whose reply never arrived.
const abandonTimeout = 5 * time.Second

// Seat states are stored in one hash per show, keyed by seat id. An absent
// field is an idle seat, "H|owner|expiry" a hold and "O|owner" an occupied
// seat. Expiry is unix milliseconds.
var claimSeatsScript = redis.NewScript(`
    -- KEYS = [seat state hash, set of shows with state]
    -- ARGV = [owner, now, expiresAt, showID, seatIDs...]
    -- returns {claimed, expired holds dropped}
    local now = tonumber(ARGV[2])
    local expired = {}
    local taken = false

    for i=5, #ARGV do
        local state = redis.call("HGET", KEYS[1], ARGV[i])
        if state then
            local kind, _, expiry = string.match(state, "^(%u)|([^|]*)|?(%d*)$")
            if kind == "H" and tonumber(expiry) <= now then
                table.insert(expired, ARGV[i])
            else
                taken = true
            end
        end
    end

    if taken then
        for _, seat in ipairs(expired) do
            redis.call("HDEL", KEYS[1], seat)
        end
        return {0, #expired}
    end

    local hold = "H|" .. ARGV[1] .. "|" .. ARGV[3]
    for i=5, #ARGV do
        redis.call("HSET", KEYS[1], ARGV[i], hold)
    end
    redis.call("SADD", KEYS[2], ARGV[4])

    return {1, 0}
`)

var confirmSeatsScript = redis.NewScript(`
    -- KEYS = [seat state hash]
    -- ARGV = [owner, now, seatIDs...]
    -- returns {confirmed, expired holds dropped, first invalid seat}
    local now = tonumber(ARGV[2])
    local expired = 0
    local invalid = 0

    for i=3, #ARGV do
        local state = redis.call("HGET", KEYS[1], ARGV[i])
        local kind, owner, expiry
        if state then
            kind, owner, expiry = string.match(state, "^(%u)|([^|]*)|?(%d*)$")
        end
        if kind == "H" and tonumber(expiry) <= now then
            redis.call("HDEL", KEYS[1], ARGV[i])
            expired = expired + 1
            kind = nil
        end
        if invalid == 0 and (kind ~= "H" or owner ~= ARGV[1]) then
            invalid = tonumber(ARGV[i])
        end
    end

    if invalid ~= 0 then
        return {0, expired, invalid}
    end

    for i=3, #ARGV do
        redis.call("HSET", KEYS[1], ARGV[i], "O|" .. ARGV[1])
    end

    return {1, 0, 0}
`)

var releaseSeatsScript = redis.NewScript(`
    -- KEYS = [seat state hash, set of shows with state]
    -- ARGV = [owner, now, showID, seatIDs...]
    -- returns {released, expired holds dropped}
    local now = tonumber(ARGV[2])
    local released = 0
    local expired = 0

    for i=4, #ARGV do
        local state = redis.call("HGET", KEYS[1], ARGV[i])
        if state then
            local kind, owner, expiry = string.match(state, "^(%u)|([^|]*)|?(%d*)$")
            if kind == "H" and tonumber(expiry) <= now then
                redis.call("HDEL", KEYS[1], ARGV[i])
                expired = expired + 1
            elseif owner == ARGV[1] then
                redis.call("HDEL", KEYS[1], ARGV[i])
                released = released + 1
            end
        end
    end

    if redis.call("HLEN", KEYS[1]) == 0 then
        redis.call("SREM", KEYS[2], ARGV[3])
    end

    return {released, expired}
`)

var sweepSeatsScript = redis.NewScript(`
    -- KEYS = [seat state hash, set of shows with state]
    -- ARGV = [now, showID]
    local now = tonumber(ARGV[1])
    local expired = 0
    local states = redis.call("HGETALL", KEYS[1])

    for i=1, #states, 2 do
        local kind, _, expiry = string.match(states[i+1], "^(%u)|([^|]*)|?(%d*)$")
        if kind == "H" and tonumber(expiry) <= now then
            redis.call("HDEL", KEYS[1], states[i])
            expired = expired + 1
        end
    end

    if redis.call("HLEN", KEYS[1]) == 0 then
        redis.call("SREM", KEYS[2], ARGV[2])
    end

    return expired
`)

var seedOccupiedScript = redis.NewScript(`
    -- KEYS = [seat state hash, set of shows with state]
    -- ARGV = [showID, seatID, owner, seatID, owner...]
    local seeded = 0

    for i=2, #ARGV, 2 do
        seeded = seeded + redis.call("HSETNX", KEYS[1], ARGV[i], "O|" .. ARGV[i+1])
    end
    if seeded > 0 then
        redis.call("SADD", KEYS[2], ARGV[1])
    end

    return seeded
`)

type redisLayout struct {
	order []domain.HallSeat
	byID  map[int64]domain.HallSeat
}

// RedisLedger keeps seat state in Redis so several API instances can share
// it. Every transition is a single Lua script, which makes multi-seat claims
// atomic without client side locks.
type RedisLedger struct {
	client  redis.UniversalClient
	catalog domain.Catalog
	clock   clock.Clock
	logger  *slog.Logger
	opts    options

	listeners

	mu      sync.RWMutex
	layouts map[int64]*redisLayout
	loader  singleflight.Group
}

func NewRedisLedger(
	client redis.UniversalClient,
	catalog domain.Catalog,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...Option) *RedisLedger {

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &RedisLedger{
		client:  client,
		catalog: catalog,
		clock:   clk,
		logger:  logger,
		opts:    o,
		layouts: make(map[int64]*redisLayout),
	}
}

func (r *RedisLedger) TryClaim(ctx context.Context, showID int64, owner string, seatIDs []int64) error {
	ids, err := r.checkSeats(ctx, showID, seatIDs)
	if err != nil {
		return err
	}

	now := r.clock.Now()
	args := []any{owner, now.UnixMilli(), now.Add(r.opts.holdTTL).UnixMilli(), showID}

	claimCtx, cancel := context.WithTimeout(ctx, r.opts.lockTimeout)
	defer cancel()

	result, err := claimSeatsScript.Run(claimCtx, r.client, []string{seatStatesKey(showID), showsWithStateKey}, appendSeatIDs(args, ids)...).Int64Slice()
	if err != nil {
		if isTimeout(err) || ctx.Err() != nil {
			// the script may have run before the reply was lost
			r.abandonClaim(ctx, showID, owner, ids)

			if ctx.Err() != nil {
				return ctx.Err()
			}

			return domain.ErrSeatUnavailable
		}

		return fmt.Errorf("claim seats of show %d: %w", showID, err)
	}

	if result[0] == 1 {
		return nil
	}

	if result[1] > 0 {
		r.notify(ctx, showID)
	}

	return domain.ErrSeatUnavailable
}

// abandonClaim drops the holds of a claim whose outcome is unknown.
func (r *RedisLedger) abandonClaim(ctx context.Context, showID int64, owner string, ids []int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()

	if _, err := r.release(ctx, showID, owner, ids); err != nil {
		r.logger.Warn("failed to drop holds of an abandoned claim, they expire with the hold ttl",
			"show_id", showID, "owner", owner, "error", err)
	}
}

func (r *RedisLedger) Confirm(ctx context.Context, showID int64, owner string, seatIDs []int64) error {
	ids, err := r.checkSeats(ctx, showID, seatIDs)
	if err != nil {
		return err
	}

	args := []any{owner, r.clock.Now().UnixMilli()}

	result, err := confirmSeatsScript.Run(ctx, r.client, []string{seatStatesKey(showID)}, appendSeatIDs(args, ids)...).Int64Slice()
	if err != nil {
		return fmt.Errorf("confirm seats of show %d: %w", showID, err)
	}

	if result[1] > 0 {
		r.notify(ctx, showID)
	}

	if result[0] != 1 {
		return fmt.Errorf("confirm seat %d of show %d: %w", result[2], showID, domain.ErrInvalidTransition)
	}

	return nil
}

func (r *RedisLedger) Release(ctx context.Context, showID int64, owner string, seatIDs []int64) (int, error) {
	ids, err := r.checkSeats(ctx, showID, seatIDs)
	if err != nil {
		return 0, err
	}

	return r.release(ctx, showID, owner, ids)
}

func (r *RedisLedger) release(ctx context.Context, showID int64, owner string, ids []int64) (int, error) {
	args := []any{owner, r.clock.Now().UnixMilli(), showID}

	result, err := releaseSeatsScript.Run(ctx, r.client, []string{seatStatesKey(showID), showsWithStateKey}, appendSeatIDs(args, ids)...).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("release seats of show %d: %w", showID, err)
	}

	released, expired := int(result[0]), result[1]
	if released > 0 || expired > 0 {
		r.notify(ctx, showID)
	}

	return released, nil
}

func (r *RedisLedger) AvailableSeats(
	ctx context.Context,
	showID int64,
	seatType *domain.SeatType) (iter.Seq[domain.HallSeat], error) {

	layout, err := r.layout(ctx, showID)
	if err != nil {
		return nil, err
	}

	states, err := r.client.HGetAll(ctx, seatStatesKey(showID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read seat states of show %d: %w", showID, err)
	}

	now := r.clock.Now()
	idle := make([]domain.HallSeat, 0, len(layout.order))

	for _, seat := range layout.order {
		if !matchesType(seat, seatType) {
			continue
		}

		value, ok := states[strconv.FormatInt(seat.ID, 10)]
		if !ok || parseSeatState(value).idleAt(now) {
			idle = append(idle, seat)
		}
	}

	return slices.Values(idle), nil
}

// Sweep deletes expired holds of every show that has seat state in Redis.
func (r *RedisLedger) Sweep(ctx context.Context) error {
	members, err := r.client.SMembers(ctx, showsWithStateKey).Result()
	if err != nil {
		return fmt.Errorf("list shows with seat state: %w", err)
	}

	now := r.clock.Now().UnixMilli()

	for _, member := range members {
		showID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			r.logger.Warn("skipping malformed show id in seat state index", "member", member)
			continue
		}

		expired, err := sweepSeatsScript.Run(ctx, r.client, []string{seatStatesKey(showID), showsWithStateKey}, now, showID).Int()
		if err != nil {
			return fmt.Errorf("sweep seats of show %d: %w", showID, err)
		}

		if expired > 0 {
			r.logger.Info("released expired seat holds", "show_id", showID, "seats", expired)
			r.notify(ctx, showID)
		}
	}

	return nil
}

func (r *RedisLedger) State(ctx context.Context, showID, seatID int64) (domain.SeatState, error) {
	if _, err := r.checkSeats(ctx, showID, []int64{seatID}); err != nil {
		return domain.SeatState{}, err
	}

	state := domain.SeatState{ShowID: showID, SeatID: seatID, Status: domain.SeatStatusIdle}

	value, err := r.client.HGet(ctx, seatStatesKey(showID), strconv.FormatInt(seatID, 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state, nil
		}

		return domain.SeatState{}, fmt.Errorf("read seat %d of show %d: %w", seatID, showID, err)
	}

	parsed := parseSeatState(value)
	if parsed.idleAt(r.clock.Now()) {
		return state, nil
	}

	state.Status = parsed.status
	state.Owner = parsed.owner
	state.ExpiresAt = parsed.expiresAt

	return state, nil
}

func (r *RedisLedger) checkSeats(ctx context.Context, showID int64, seatIDs []int64) ([]int64, error) {
	layout, err := r.layout(ctx, showID)
	if err != nil {
		return nil, err
	}

	ids, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := layout.byID[id]; !ok {
			return nil, fmt.Errorf("seat %d: %w", id, domain.ErrUnknownSeat)
		}
	}

	return ids, nil
}

func (r *RedisLedger) layout(ctx context.Context, showID int64) (*redisLayout, error) {
	r.mu.RLock()
	layout, ok := r.layouts[showID]
	r.mu.RUnlock()

	if ok {
		return layout, nil
	}

	v, err, _ := r.loader.Do(strconv.FormatInt(showID, 10), func() (any, error) {
		seats, err := loadLayout(ctx, r.catalog, showID)
		if err != nil {
			return nil, err
		}

		layout := &redisLayout{order: seats, byID: make(map[int64]domain.HallSeat, len(seats))}
		for _, seat := range seats {
			layout.byID[seat.ID] = seat
		}

		if err := r.seedOccupied(ctx, showID); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.layouts[showID] = layout
		r.mu.Unlock()

		return layout, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*redisLayout), nil
}

// seedOccupied restores occupied seats that Redis lost, for example after a
// flush, from the persisted bookings.
func (r *RedisLedger) seedOccupied(ctx context.Context, showID int64) error {
	if r.opts.occupancy == nil {
		return nil
	}

	occupied, err := r.opts.occupancy.OccupiedSeats(ctx, showID)
	if err != nil {
		return fmt.Errorf("load occupied seats of show %d: %w", showID, err)
	}

	if len(occupied) == 0 {
		return nil
	}

	args := make([]any, 0, 1+2*len(occupied))
	args = append(args, showID)
	for seatID, owner := range occupied {
		args = append(args, seatID, owner)
	}

	seeded, err := seedOccupiedScript.Run(ctx, r.client, []string{seatStatesKey(showID), showsWithStateKey}, args...).Int()
	if err != nil {
		return fmt.Errorf("seed occupied seats of show %d: %w", showID, err)
	}

	if seeded > 0 {
		r.logger.Warn("restored occupied seats missing from redis", "show_id", showID, "seats", seeded)
	}

	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type parsedSeatState struct {
	status    domain.SeatStatus
	owner     string
	expiresAt time.Time
}

func (s parsedSeatState) idleAt(now time.Time) bool {
	return s.status == domain.SeatStatusIdle ||
		(s.status == domain.SeatStatusHeld && !now.Before(s.expiresAt))
}

func parseSeatState(value string) parsedSeatState {
	parts := strings.Split(value, "|")

	switch {
	case len(parts) == 3 && parts[0] == "H":
		millis, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return parsedSeatState{status: domain.SeatStatusIdle}
		}

		return parsedSeatState{
			status:    domain.SeatStatusHeld,
			owner:     parts[1],
			expiresAt: time.UnixMilli(millis).UTC(),
		}
	case len(parts) == 2 && parts[0] == "O":
		return parsedSeatState{status: domain.SeatStatusOccupied, owner: parts[1]}
	default:
		return parsedSeatState{status: domain.SeatStatusIdle}
	}
}

func seatStatesKey(showID int64) string {
	return fmt.Sprintf("seat_states:%d", showID)
}

func appendSeatIDs(args []any, seatIDs []int64) []any {
	for _, id := range seatIDs {
		args = append(args, id)
	}

	return args
}
