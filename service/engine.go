package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"matchbook/domain/orderbook"
	"matchbook/infra/codec"
	"matchbook/infra/memory"
	"matchbook/infra/sequence"
	"matchbook/infra/wal/entry"
	"matchbook/infra/wal/exit"
)

var (
	ErrEngineClosed  = errors.New("engine closed")
	ErrEngineStarted = errors.New("engine already started")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrDuplicateBook = errors.New("order book already exists")

	// ErrEngineHalted wraps the durability failure that stopped the engine.
	// Commands of the failing group commit and every later command get it.
	ErrEngineHalted = errors.New("engine halted")
)

// Journal is the command log; *entry.WAL implements it.
type Journal interface {
	Append(r *entry.Record) error
	Sync() error
	TruncateBefore(seq uint64) error
}

// Outbox stores encoded outcomes for the publishers; *exit.ExitWAL
// implements it.
type Outbox interface {
	PutBatch(seq uint64, payload []byte) error
	PutBatches(recs []*exit.ExitRecord) error
	Get(seq uint64) (*exit.ExitRecord, error)
	LastSeq() (uint64, error)
	TruncateAckedUpTo(seq uint64) (int, error)
}

type Config struct {
	QueueSize      int
	RetireRingSize uint64
	EventChains    int
	EventChainLen  int
	Pools          orderbook.PoolConfig
}

func DefaultConfig() Config {
	return Config{
		QueueSize:      4096,
		RetireRingSize: 1 << 14,
		EventChains:    1024,
		EventChainLen:  64,
		Pools:          orderbook.DefaultPoolConfig(),
	}
}

// Reply is the outcome of one command. Events are copies; the engine keeps
// no reference to them.
type Reply struct {
	Seq        uint64
	ResultCode orderbook.ResultCode
	Events     []orderbook.Event
	MarketData *orderbook.L2MarketData
}

type response struct {
	reply *Reply
	err   error
}

type request struct {
	cmd  *orderbook.OrderCommand
	fn   func()
	done chan response
}

// retired carries a processed command from the engine goroutine to the
// outbox writer.
type retired struct {
	seq     uint64
	payload []byte
	events  *orderbook.Event
}

const (
	maxGroupCommit = 256
	maxOutboxBatch = 512
	outboxAttempts = 3
)

// Engine is the single writer of every order book.
type Engine struct {
	cfg Config
	log *zap.Logger

	books   map[int32]*orderbook.OrderBook
	symbols []int32
	pools   *orderbook.Pools
	chains  *memory.ChainPool[orderbook.Event]
	events  *orderbook.EventsHelper

	seq     *sequence.Sequencer
	journal Journal
	outbox  Outbox

	ring     *memory.RetireRing[retired]
	retirees *memory.Pool[retired]
	wake     chan struct{}
	scratch  []byte
	pending  []pendingReply

	// lastRetired is written by the engine goroutine only; stored is the
	// highest sequence the outbox writer has persisted.
	lastRetired uint64
	stored      atomic.Uint64
	halt        atomic.Pointer[error]

	reqs       chan *request
	quit       chan struct{}
	loopDone   chan struct{}
	outboxDone chan struct{}
	wg         sync.WaitGroup
	started    bool
	closeOnce  sync.Once
}

type pendingReply struct {
	done chan response
	resp response
}

// NewEngine creates a stopped engine without books. journal and outbox may
// be nil, in which case commands are not journaled or outcomes not stored.
func NewEngine(
	cfg Config,
	seq *sequence.Sequencer,
	journal Journal,
	outbox Outbox,
	log *zap.Logger,
) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if seq == nil {
		seq = sequence.New(0)
	}
	chains := memory.NewChainPool(cfg.EventChains, cfg.EventChains/4, orderbook.NewEventChain(cfg.EventChainLen))
	e := &Engine{
		cfg:      cfg,
		log:      log.Named("engine"),
		books:    make(map[int32]*orderbook.OrderBook),
		pools:    orderbook.NewPools(cfg.Pools),
		chains:   chains,
		events:   orderbook.NewEventsHelper(chains),
		seq:      seq,
		journal:  journal,
		outbox:   outbox,
		ring:     memory.NewRetireRing[retired](cfg.RetireRingSize),
		wake:     make(chan struct{}, 1),
		reqs:     make(chan *request, cfg.QueueSize),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	e.outboxDone = make(chan struct{})
	e.retirees = memory.NewPool(func() *retired {
		return &retired{payload: make([]byte, 0, 256)}
	})
	return e
}

// AddSymbol creates an empty book for spec. Books can only be added before
// Start.
func (e *Engine) AddSymbol(spec orderbook.SymbolSpec) error {
	if e.started {
		return ErrEngineStarted
	}
	if _, ok := e.books[spec.SymbolID]; ok {
		return fmt.Errorf("symbol %d: %w", spec.SymbolID, ErrDuplicateBook)
	}
	e.books[spec.SymbolID] = orderbook.New(spec, e.pools, e.log, e.events)
	return nil
}

// Pools and Events are the allocators books of this engine must use; the
// snapshot loader builds books with them.
func (e *Engine) Pools() *orderbook.Pools                { return e.pools }
func (e *Engine) Events() *orderbook.EventsHelper        { return e.events }
func (e *Engine) Sequencer() *sequence.Sequencer         { return e.seq }
func (e *Engine) Book(symbol int32) *orderbook.OrderBook { return e.books[symbol] }

// AddBook installs a book rebuilt from a snapshot. It must have been built
// with Pools and Events.
func (e *Engine) AddBook(book *orderbook.OrderBook) error {
	if e.started {
		return ErrEngineStarted
	}
	id := book.Spec().SymbolID
	if _, ok := e.books[id]; ok {
		return fmt.Errorf("symbol %d: %w", id, ErrDuplicateBook)
	}
	e.books[id] = book
	return nil
}

// Symbols lists the configured symbols in ascending order.
func (e *Engine) Symbols() []int32 {
	if e.started {
		return e.symbols
	}
	return e.sortedSymbols()
}

func (e *Engine) sortedSymbols() []int32 {
	ids := make([]int32, 0, len(e.books))
	for id := range e.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Start launches the engine goroutine and the outbox writer.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	e.symbols = e.sortedSymbols()

	e.wg.Add(1)
	go e.runOutbox()
	go e.run()
	e.log.Info("engine started",
		zap.Int("symbols", len(e.books)),
		zap.Uint64("seq", e.seq.Current()))
}

// Close stops accepting commands, fails the queued ones, flushes the outbox
// and syncs the journal. It does not close the journal or the outbox.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.quit)
		if !e.started {
			return
		}
		<-e.loopDone
		e.wg.Wait()
		if e.journal != nil {
			err = e.journal.Sync()
		}
		e.log.Info("engine stopped",
			zap.Uint64("seq", e.seq.Current()),
			poolFields(e.pools.Stats()))
	})
	return err
}

// Submit queues cmd and waits for its reply. A command whose context ends
// after it was queued may still be applied.
func (e *Engine) Submit(ctx context.Context, cmd *orderbook.OrderCommand) (*Reply, error) {
	resp, err := e.send(ctx, &request{cmd: cmd, done: make(chan response, 1)})
	if err != nil {
		return nil, err
	}
	return resp.reply, resp.err
}

// Do runs fn on the engine goroutine between two commands.
func (e *Engine) Do(ctx context.Context, fn func()) error {
	_, err := e.send(ctx, &request{fn: fn, done: make(chan response, 1)})
	return err
}

// L2 returns the aggregated book of symbol up to depth levels per side.
func (e *Engine) L2(ctx context.Context, symbol int32, depth int) (*orderbook.L2MarketData, error) {
	reply, err := e.Submit(ctx, &orderbook.OrderCommand{
		Command: orderbook.OrderBookRequest,
		Symbol:  symbol,
		Size:    int64(depth),
	})
	if err != nil {
		return nil, err
	}
	if reply.ResultCode != orderbook.ResultSuccess {
		return nil, fmt.Errorf("symbol %d: %w", symbol, ErrUnknownSymbol)
	}
	return reply.MarketData, nil
}

func (e *Engine) send(ctx context.Context, req *request) (response, error) {
	select {
	case <-e.quit:
		return response{}, ErrEngineClosed
	default:
	}
	select {
	case e.reqs <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-e.quit:
		return response{}, ErrEngineClosed
	}
	select {
	case resp := <-req.done:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-e.loopDone:
		select {
		case resp := <-req.done:
			return resp, nil
		default:
			return response{}, ErrEngineClosed
		}
	}
}

// -------------------- engine goroutine --------------------

func (e *Engine) run() {
	defer close(e.loopDone)
	for {
		select {
		case req := <-e.reqs:
			e.handle(req)
			// group commit: one fsync covers every command handled while
			// the queue was non-empty
			if len(e.reqs) == 0 || len(e.pending) >= maxGroupCommit {
				e.commit()
			}
		case <-e.quit:
			e.commit()
			for {
				select {
				case req := <-e.reqs:
					req.done <- response{err: ErrEngineClosed}
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) handle(req *request) {
	if req.fn != nil {
		req.fn()
		e.pending = append(e.pending, pendingReply{done: req.done})
		return
	}
	reply, err := e.process(req.cmd)
	e.pending = append(e.pending, pendingReply{done: req.done, resp: response{reply: reply, err: err}})
}

// commit makes the journaled commands durable and then releases their
// replies.
func (e *Engine) commit() {
	if len(e.pending) == 0 {
		return
	}
	var failed error
	if e.journal != nil {
		if err := e.journal.Sync(); err != nil {
			failed = e.fail(fmt.Errorf("journal sync: %w", err))
		}
	}
	for i := range e.pending {
		if failed != nil {
			e.pending[i].resp = response{err: failed}
		}
		e.pending[i].done <- e.pending[i].resp
		e.pending[i] = pendingReply{}
	}
	e.pending = e.pending[:0]
}

func recordTypeOf(c orderbook.CommandType) (entry.RecordType, bool) {
	switch c {
	case orderbook.PlaceOrder:
		return entry.RecordPlace, true
	case orderbook.CancelOrder:
		return entry.RecordCancel, true
	case orderbook.MoveOrder:
		return entry.RecordMove, true
	case orderbook.ReduceOrder:
		return entry.RecordReduce, true
	default:
		return 0, false
	}
}

func (e *Engine) process(cmd *orderbook.OrderCommand) (*Reply, error) {
	book, ok := e.books[cmd.Symbol]
	if !ok {
		return &Reply{ResultCode: orderbook.ResultMatchingInvalidOrderBookID}, nil
	}

	if cmd.Command == orderbook.OrderBookRequest {
		code := book.ProcessCommand(cmd)
		if cmd.MarketData != nil {
			cmd.MarketData.Seq = e.seq.Current()
			cmd.MarketData.Timestamp = time.Now().UnixNano()
		}
		return &Reply{ResultCode: code, MarketData: cmd.MarketData}, nil
	}

	rt, ok := recordTypeOf(cmd.Command)
	if !ok {
		return &Reply{ResultCode: orderbook.ResultMatchingUnsupportedCommand}, nil
	}
	if err := e.Err(); err != nil {
		return nil, err
	}
	if cmd.Timestamp == 0 {
		cmd.Timestamp = time.Now().UnixNano()
	}
	seq := e.seq.Next()
	if e.journal != nil {
		e.scratch = codec.AppendCommand(e.scratch[:0], cmd)
		if err := e.journal.Append(entry.NewRecord(rt, seq, e.scratch)); err != nil {
			return nil, e.fail(fmt.Errorf("journal append seq %d: %w", seq, err))
		}
	}
	reply, r := e.apply(seq, cmd)
	e.retire(r)
	return reply, nil
}

// apply runs cmd against its book. The returned retiree owns the encoded
// outcome and the event chain; the caller must retire or recycle it.
func (e *Engine) apply(seq uint64, cmd *orderbook.OrderCommand) (*Reply, *retired) {
	if cmd.Command == orderbook.PlaceOrder {
		// commands reaching the engine have passed validation
		cmd.ResultCode = orderbook.ResultValidForMatchingEngine
	}
	book := e.books[cmd.Symbol]
	cmd.ResultCode = book.ProcessCommand(cmd)

	reply := &Reply{Seq: seq, ResultCode: cmd.ResultCode}
	if n := cmd.EventCount(); n > 0 {
		reply.Events = make([]orderbook.Event, 0, n)
		cmd.ForEachEvent(func(ev *orderbook.Event) {
			c := *ev
			c.Next = nil
			reply.Events = append(reply.Events, c)
		})
	}

	r := e.retirees.Get()
	r.seq = seq
	r.payload = codec.AppendBatch(r.payload[:0], seq, cmd)
	r.events = cmd.Events
	cmd.Events = nil
	return reply, r
}

// retire enqueues r for the outbox writer, waiting while the ring is full.
func (e *Engine) retire(r *retired) {
	seq := r.seq
	for !e.ring.Enqueue(r) {
		e.signalOutbox()
		time.Sleep(50 * time.Microsecond)
	}
	e.lastRetired = seq
	e.signalOutbox()
}

func (e *Engine) signalOutbox() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) storeNow(r *retired) error {
	defer e.recycle(r)
	if e.outbox == nil {
		return nil
	}
	if err := e.outbox.PutBatch(r.seq, r.payload); err != nil {
		return fmt.Errorf("outbox seq %d: %w", r.seq, err)
	}
	return nil
}

func (e *Engine) recycle(r *retired) {
	e.chains.Put(r.events)
	r.events = nil
	r.payload = r.payload[:0]
	e.retirees.Put(r)
}

// -------------------- outbox writer --------------------

func (e *Engine) runOutbox() {
	defer e.wg.Done()
	defer close(e.outboxDone)
	batch := make([]*retired, 0, maxOutboxBatch)
	recs := make([]*exit.ExitRecord, 0, maxOutboxBatch)
	for {
		select {
		case <-e.wake:
			batch, recs = e.drainOutbox(batch, recs)
		case <-e.loopDone:
			e.drainOutbox(batch, recs)
			return
		}
	}
}

func (e *Engine) drainOutbox(batch []*retired, recs []*exit.ExitRecord) ([]*retired, []*exit.ExitRecord) {
	for {
		batch, recs = batch[:0], recs[:0]
		for len(batch) < maxOutboxBatch {
			r := e.ring.Dequeue()
			if r == nil {
				break
			}
			batch = append(batch, r)
			recs = append(recs, &exit.ExitRecord{Seq: r.seq, Payload: r.payload})
		}
		if len(batch) == 0 {
			return batch, recs
		}
		e.writeOutbox(recs)
		for i, r := range batch {
			e.recycle(r)
			batch[i] = nil
			recs[i] = nil
		}
	}
}

// writeOutbox persists one batch. A batch that still fails after
// outboxAttempts halts the engine; its outcomes are stored again by
// ReplayFromWAL on the next start, so nothing after it is written.
func (e *Engine) writeOutbox(recs []*exit.ExitRecord) {
	last := recs[len(recs)-1].Seq
	if e.outbox == nil {
		e.stored.Store(last)
		return
	}
	if e.Err() != nil {
		return
	}
	var err error
	for attempt := 0; attempt < outboxAttempts; attempt++ {
		if err = e.outbox.PutBatches(recs); err == nil {
			e.stored.Store(last)
			return
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	e.fail(fmt.Errorf("outbox seq %d-%d: %w", recs[0].Seq, last, err))
}

// waitStored blocks until the outbox writer has persisted every outcome up
// to seq.
func (e *Engine) waitStored(ctx context.Context, seq uint64) error {
	if e.outbox == nil {
		return nil
	}
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for e.stored.Load() < seq {
		if err := e.Err(); err != nil {
			return err
		}
		e.signalOutbox()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.outboxDone:
			if e.stored.Load() < seq {
				return ErrEngineClosed
			}
		case <-t.C:
		}
	}
	return nil
}

func poolFields(st orderbook.PoolStats) zap.Field {
	return zap.Dict("pools",
		zap.Uint64("ordersAllocated", st.OrdersAllocated),
		zap.Uint64("ordersReused", st.OrdersReused),
		zap.Uint64("bucketsAllocated", st.BucketsAllocated),
		zap.Uint64("bucketsReused", st.BucketsReused))
}

// -------------------- failure --------------------

// fail halts the engine with cause and returns the error callers get. Only
// the first cause is kept.
func (e *Engine) fail(cause error) error {
	err := fmt.Errorf("%w: %w", ErrEngineHalted, cause)
	if e.halt.CompareAndSwap(nil, &err) {
		e.log.Error("engine halted, restart to recover from the journal", zap.Error(cause))
		return err
	}
	return *e.halt.Load()
}

// Err returns the failure that halted the engine, or nil.
func (e *Engine) Err() error {
	if p := e.halt.Load(); p != nil {
		return *p
	}
	return nil
}
