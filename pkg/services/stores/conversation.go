package stores

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cupogo/andvari/models/oid"
	"gopkg.in/yaml.v3"

	"github.com/liut/showroom/pkg/models/aigc"
	"github.com/liut/showroom/pkg/settings"
)

const (
	historyLifetimeS = time.Second * 86400
)

// Conversation is the stored history of one session
type Conversation interface {
	GetID() string
	AddHistory(ctx context.Context, turns ...aigc.Turn) error
	ListHistory(ctx context.Context) (aigc.Turns, error)
	ClearHistory(ctx context.Context) error
}

// Sessions open conversations by id
type Sessions interface {
	Conversation(id any) Conversation
}

// CastID returns a valid session id, a new one for an empty or invalid value
func CastID(id any) oid.OID {
	cid := oid.Cast(id)
	if cid.IsZero() {
		cid = oid.NewID(oid.OtEvent)
	}
	return cid
}

// NewRedisSessions keeps histories in redis lists, maxLen 0 is unbounded
func NewRedisSessions(rc RedisClient, maxLen int64) Sessions {
	return &redisSessions{rc: rc, maxLen: maxLen}
}

type redisSessions struct {
	rc     RedisClient
	maxLen int64
}

func (rs *redisSessions) Conversation(id any) Conversation {
	return &conversation{id: CastID(id), rc: rs.rc, maxLen: rs.maxLen}
}

type conversation struct {
	id     oid.OID
	rc     RedisClient
	maxLen int64
}

func (s *conversation) GetID() string {
	return s.id.String()
}

func (s *conversation) AddHistory(ctx context.Context, turns ...aigc.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	key := s.getKey()
	values := make([]any, 0, len(turns))
	for i := range turns {
		b, err := turns[i].MarshalBinary()
		if err != nil {
			return err
		}
		values = append(values, b)
	}
	res := s.rc.RPush(ctx, key, values...)
	err := res.Err()
	if err == nil {
		count, _ := res.Result()
		logger().Debugw("add history ok", "key", key, "count", count)
		if err = s.rc.Expire(ctx, key, historyLifetimeS).Err(); err != nil {
			return err
		}
		if s.maxLen > 0 && count > s.maxLen {
			logger().Infow("history length overflow", "count", count)
			err = s.rc.LTrim(ctx, key, -s.maxLen, -1).Err()
		}
	}
	if err != nil {
		logger().Infow("add history fail", "key", key, "err", err)
	}
	return err
}

func (s *conversation) ListHistory(ctx context.Context) (data aigc.Turns, err error) {
	key := s.getKey()
	ss := s.rc.LRange(ctx, key, 0, -1)
	err = ss.ScanSlice(&data)
	return
}

func (s *conversation) ClearHistory(ctx context.Context) error {
	return s.rc.Del(ctx, s.getKey()).Err()
}

func (s *conversation) getKey() string {
	return "convs-" + s.GetID()
}

// NewMemorySessions keeps histories in process memory
func NewMemorySessions(maxLen int64) Sessions {
	return &memSessions{data: make(map[string]aigc.Turns), maxLen: maxLen}
}

type memSessions struct {
	mu     sync.RWMutex
	data   map[string]aigc.Turns
	maxLen int64
}

func (ms *memSessions) Conversation(id any) Conversation {
	return &memConversation{id: CastID(id), ms: ms}
}

type memConversation struct {
	id oid.OID
	ms *memSessions
}

func (s *memConversation) GetID() string {
	return s.id.String()
}

func (s *memConversation) AddHistory(ctx context.Context, turns ...aigc.Turn) error {
	s.ms.mu.Lock()
	defer s.ms.mu.Unlock()
	hs := s.ms.data[s.GetID()].With(turns...)
	if m := int(s.ms.maxLen); m > 0 && len(hs) > m {
		hs = hs[len(hs)-m:]
	}
	s.ms.data[s.GetID()] = hs
	return nil
}

func (s *memConversation) ListHistory(ctx context.Context) (aigc.Turns, error) {
	s.ms.mu.RLock()
	defer s.ms.mu.RUnlock()
	return s.ms.data[s.GetID()].With(), nil
}

func (s *memConversation) ClearHistory(ctx context.Context) error {
	s.ms.mu.Lock()
	defer s.ms.mu.Unlock()
	delete(s.ms.data, s.GetID())
	return nil
}

// LoadPreset from the file of settings, defaults filled
func LoadPreset() (doc aigc.Preset, err error) {
	if len(settings.Current.PresetFile) > 0 {
		var yf *os.File
		yf, err = os.Open(settings.Current.PresetFile)
		if err != nil {
			logger().Infow("load preset fail", "file", settings.Current.PresetFile, "err", err)
			return
		}
		defer yf.Close()
		err = yaml.NewDecoder(yf).Decode(&doc)
		if err != nil {
			logger().Infow("decode preset fail", "err", err)
			return
		}
	}
	if len(doc.Model) == 0 {
		doc.Model = settings.Current.ChatModel
	}
	doc.SetDefaults()

	return
}
