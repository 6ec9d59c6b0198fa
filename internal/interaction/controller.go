package interaction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/ButyrinIA/feedsync/internal/classify"
	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/normalize"
	"github.com/ButyrinIA/feedsync/internal/notify"
	"github.com/ButyrinIA/feedsync/internal/reconcile"
	"github.com/ButyrinIA/feedsync/internal/store"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrEmptyContent  = errors.New("comment content is empty")
)

// GenericFailure показывается, когда сервер не прислал своего сообщения.
const GenericFailure = "Something went wrong. Please try again."

// Transport отправляет запрос и возвращает конверт ответа.
// Ошибка означает, что ответа не было вовсе.
type Transport interface {
	Do(ctx context.Context, req models.Request) (models.Envelope, error)
}

// SessionGuard обновляет истекшую сессию.
type SessionGuard interface {
	Refresh(ctx context.Context) error
}

type Options struct {
	Session    SessionGuard
	Notifier   notify.Sink
	Author     models.UserRef
	Normalizer *normalize.Normalizer
}

// Input - действие пользователя.
// EntityID - пост для like/save/addComment, комментарий для остальных.
// PostID можно не указывать для действий над комментарием: он будет найден в хранилище.
type Input struct {
	Action   Action
	EntityID models.ID
	PostID   models.ID
	Content  string
	ParentID *models.ID
}

// Result - оптимистичный снимок после применения действия.
// Pending == nil, если запрос к серверу не понадобился.
// Ignored - действие отброшено: такой же запрос по сущности уже в пути.
type Result struct {
	Post    models.Post
	Comment *models.Comment
	Pending *Ticket
	Ignored bool
}

// Outcome - итог взаимодействия после ответа сервера.
type Outcome struct {
	State     State
	Success   bool
	Verdict   classify.Verdict
	Message   string
	Discarded bool
}

// Ticket - запрос в пути.
type Ticket struct {
	done    chan struct{}
	outcome Outcome
}

func newTicket() *Ticket {
	return &Ticket{done: make(chan struct{})}
}

func (p *Ticket) Done() <-chan struct{} { return p.done }

// Wait ждет итог. Отмена ctx прекращает ожидание, но не сам запрос.
func (p *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (p *Ticket) finish(o Outcome) {
	p.outcome = o
	close(p.done)
}

type slotKey struct {
	entity models.ID
	family Family
}

// slot - взаимодействие в состоянии Pending.
// gen растет при каждом локальном изменении, сделанном после отправки запроса.
type slot struct {
	post    models.ID
	gen     uint64
	intent  Action
	pending *Ticket
}

// Controller - машина состояний оптимистичных взаимодействий.
// Это единственный, кроме загрузчика ленты, писатель в хранилище.
type Controller struct {
	st        *store.Store
	transport Transport
	session   SessionGuard
	notifier  notify.Sink
	author    models.UserRef
	norm      *normalize.Normalizer

	mu    sync.Mutex
	slots map[slotKey]*slot
	// countGen растет при каждом оптимистичном изменении CommentCount поста.
	countGen map[models.ID]uint64
	wg       sync.WaitGroup
}

func New(st *store.Store, tr Transport, opts Options) *Controller {
	norm := opts.Normalizer
	if norm == nil {
		norm = normalize.New(normalize.Options{})
	}
	return &Controller{
		st:        st,
		transport: tr,
		session:   opts.Session,
		notifier:  opts.Notifier,
		author:    opts.Author,
		norm:      norm,
		slots:     make(map[slotKey]*slot),
		countGen:  make(map[models.ID]uint64),
	}
}

// State возвращает Pending, пока у пары (сущность, семейство) есть запрос в пути.
func (c *Controller) State(entity models.ID, family Family) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy(entity, family) {
		return Pending
	}
	return Idle
}

// Wait ждет завершения всех запросов в пути.
func (c *Controller) Wait() { c.wg.Wait() }

// Apply применяет действие оптимистично и отправляет запрос.
// Ошибка возвращается только при неверном вызове: неизвестное действие,
// отсутствующая сущность, пустой комментарий.
func (c *Controller) Apply(ctx context.Context, in Input) (Result, error) {
	switch in.Action {
	case AddComment:
		return c.addComment(ctx, in)
	case DeleteComment:
		return c.deleteComment(ctx, in)
	}
	t, ok := toggles[in.Action]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}
	return c.toggle(ctx, in, t)
}

func (c *Controller) toggle(ctx context.Context, in Input, t toggle) (Result, error) {
	var (
		tg        target
		postID    = in.EntityID
		commentID models.ID
	)
	if t.comment {
		var err error
		if postID, err = c.commentPost(in); err != nil {
			return Result{}, err
		}
		commentID = in.EntityID
		if isTemp(commentID) {
			// сервер еще не знает этот комментарий
			return c.ignored(postID, commentID), nil
		}
		tg = commentTarget{st: c.st, postID: postID, id: commentID}
	} else {
		tg = postTarget{st: c.st, id: postID}
	}
	k := slotKey{in.EntityID, t.family}

	c.mu.Lock()
	cur, ok := tg.read()
	if !ok {
		c.mu.Unlock()
		return Result{}, store.ErrNotFound
	}

	if sl, busy := c.slots[k]; busy {
		if sl.intent == in.Action {
			c.mu.Unlock()
			return c.ignored(postID, commentID), nil
		}
		// обратное действие, пока запрос в пути: меняем только локальное
		// состояние и намерение, итог решится после ответа
		if err := tg.update(func(cn *counters) { applyToggle(cn, in.Action) }); err != nil {
			c.mu.Unlock()
			return Result{}, err
		}
		sl.intent = in.Action
		sl.gen++
		p := sl.pending
		c.mu.Unlock()
		return c.result(postID, commentID, p), nil
	}

	if t.flag(cur) == t.on {
		c.mu.Unlock()
		return c.result(postID, commentID, nil), nil
	}
	if err := tg.update(func(cn *counters) { applyToggle(cn, in.Action) }); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	sl := &slot{post: postID, intent: in.Action, pending: newTicket()}
	c.slots[k] = sl
	c.wg.Add(1)
	go c.runToggle(context.WithoutCancel(ctx), k, sl, tg, in.Action, cur, 0)
	c.mu.Unlock()

	return c.result(postID, commentID, sl.pending), nil
}

func (c *Controller) runToggle(ctx context.Context, k slotKey, sl *slot, tg target, a Action, pre counters, gen uint64) {
	defer c.wg.Done()

	t := toggles[a]
	res := c.send(ctx, toggleRequest(a, k.entity))

	c.mu.Lock()
	mutatedAfter := sl.gen != gen
	out := Outcome{State: Committed, Success: res.ok, Verdict: res.verdict}
	confirmed := t.on
	notice := ""
	var err error

	switch {
	case res.ok:
		err = tg.merge(reconcile.PatchFrom(res.env.Data), t.scope, mutatedAfter)
	case res.verdict.Class.Keeps():
		log.Printf("%s для %s: %s (%s), оптимистичное значение сохранено", a, k.entity, res.verdict.Class, res.env.Message)
		err = exists(tg)
	default:
		out.State = RolledBack
		confirmed = !t.on
		if mutatedAfter {
			log.Printf("%s для %s не удалось, но есть более новое намерение %s", a, k.entity, sl.intent)
			err = exists(tg)
		} else {
			err = tg.update(func(cn *counters) { t.restore(cn, pre) })
			notice = res.message()
		}
	}

	if errors.Is(err, store.ErrNotFound) {
		delete(c.slots, k)
		c.mu.Unlock()
		log.Printf("Результат %s для %s отброшен: сущность удалена", a, k.entity)
		out.Discarded = true
		sl.pending.finish(out)
		return
	}

	if mutatedAfter && toggles[sl.intent].on != confirmed {
		next := sl.intent
		nextPre, _ := tg.read()
		applyToggle(&nextPre, toggles[next].inverse)
		nextGen := sl.gen
		c.wg.Add(1)
		c.mu.Unlock()

		log.Printf("Отправка %s для %s: намерение изменилось, пока запрос был в пути", next, k.entity)
		c.runToggle(ctx, k, sl, tg, next, nextPre, nextGen)
		return
	}

	delete(c.slots, k)
	c.mu.Unlock()

	if notice != "" {
		out.Message = notice
		c.notify(k.entity, a, notice)
	}
	sl.pending.finish(out)
}

type response struct {
	env     models.Envelope
	ok      bool
	verdict classify.Verdict
}

func (r response) message() string {
	if r.env.Message != "" {
		return r.env.Message
	}
	return GenericFailure
}

// send отправляет запрос и классифицирует неуспешный ответ.
// При истекшей сессии делается одно обновление и один повтор.
func (c *Controller) send(ctx context.Context, req models.Request) response {
	env, err := c.transport.Do(ctx, req)
	if err == nil && !env.Success && env.Status == http.StatusUnauthorized && c.session != nil {
		log.Printf("Сессия истекла, обновление токена")
		if rerr := c.session.Refresh(ctx); rerr != nil {
			log.Printf("Не удалось обновить сессию: %v", rerr)
			return response{verdict: classify.Verdict{Class: classify.RealError}}
		}
		env, err = c.transport.Do(ctx, req)
	}
	if err != nil {
		log.Printf("Ошибка сети %s %s: %v", req.Method, req.Path, err)
		return response{verdict: classify.Verdict{Class: classify.RealError}}
	}
	if env.Success {
		return response{env: env, ok: true}
	}

	status := env.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	v := classify.Classify(status, env.Message)
	if v.Class == classify.AuthExpired {
		// повтор уже был или обновлять нечем
		v.Class = classify.RealError
		env.Message = ""
	}
	return response{env: env, verdict: v}
}

func (c *Controller) notify(entity models.ID, a Action, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(notify.Notice{EntityID: entity, Action: string(a), Message: msg})
}

func (c *Controller) commentPost(in Input) (models.ID, error) {
	if in.PostID != "" {
		return in.PostID, nil
	}
	postID, ok := c.st.FindCommentPost(in.EntityID)
	if !ok {
		return "", store.ErrNotFound
	}
	return postID, nil
}

func (c *Controller) result(postID, commentID models.ID, p *Ticket) Result {
	post, _ := c.st.Post(postID)
	res := Result{Post: post, Pending: p}
	if commentID != "" {
		if cm, ok := c.st.Comment(postID, commentID); ok {
			res.Comment = &cm
		}
	}
	return res
}

func (c *Controller) ignored(postID, commentID models.ID) Result {
	res := c.result(postID, commentID, nil)
	res.Ignored = true
	return res
}

func exists(tg target) error {
	if _, ok := tg.read(); !ok {
		return store.ErrNotFound
	}
	return nil
}

const tempPrefix = "tmp-"

func isTemp(id models.ID) bool {
	return strings.HasPrefix(string(id), tempPrefix)
}
