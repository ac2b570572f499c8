package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"season-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a season's questions from the system of record.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, seasonID string) ([]domain.Question, error)
}

// QuestionBank caches question sets in Redis and falls back to a loader on miss.
//
//	SET  season:{seasonID}:questions <json array>
//	HSET season:{seasonID}:answers   {questionID} {correctOption}
//
// Redis failures degrade to the loader; they are logged, not returned.
type QuestionBank struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) QuestionsForSeason(ctx context.Context, seasonID string) ([]domain.Question, error) {
	raw, err := b.client.Get(ctx, questionsKey(seasonID)).Bytes()
	if err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(raw, &questions); err == nil {
			return questions, nil
		}
		log.Printf("discarding corrupt question cache for %s", seasonID)
	} else if err != redis.Nil {
		log.Printf("redis get questions %s: %v", seasonID, err)
	}
	return b.fill(ctx, seasonID)
}

func (b *QuestionBank) CorrectAnswers(ctx context.Context, seasonID string, questionIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}

	key := answersKey(seasonID)
	var (
		exists *redis.IntCmd
		vals   *redis.SliceCmd
	)
	_, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, key)
		vals = pipe.HMGet(ctx, key, questionIDs...)
		return nil
	})
	if err == nil && exists.Val() == 1 {
		for i, v := range vals.Val() {
			if s, ok := v.(string); ok {
				out[questionIDs[i]] = s
			}
		}
		return out, nil
	}
	if err != nil {
		log.Printf("redis get answers %s: %v", seasonID, err)
	}

	questions, err := b.fill(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		want[id] = struct{}{}
	}
	for _, q := range questions {
		if _, ok := want[q.ID]; ok {
			out[q.ID] = q.CorrectOption
		}
	}
	return out, nil
}

// Invalidate drops both cached keys for a season.
func (b *QuestionBank) Invalidate(ctx context.Context, seasonID string) error {
	return b.client.Del(ctx, questionsKey(seasonID), answersKey(seasonID)).Err()
}

// fill loads from the loader once per season across concurrent callers and
// writes both keys in one MULTI. The shared load is detached from the leading
// caller's cancellation.
func (b *QuestionBank) fill(ctx context.Context, seasonID string) ([]domain.Question, error) {
	ctx = context.WithoutCancel(ctx)
	result, err, _ := b.sf.Do(seasonID, func() (interface{}, error) {
		questions, err := b.loader.LoadQuestions(ctx, seasonID)
		if err != nil {
			return nil, err
		}
		blob, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}

		ttl := b.ttlWithJitter()
		answers := make(map[string]interface{}, len(questions))
		for _, q := range questions {
			answers[q.ID] = q.CorrectOption
		}
		_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, questionsKey(seasonID), blob, ttl)
			pipe.Del(ctx, answersKey(seasonID))
			if len(answers) > 0 {
				pipe.HSet(ctx, answersKey(seasonID), answers)
				if ttl > 0 {
					pipe.Expire(ctx, answersKey(seasonID), ttl)
				}
			}
			return nil
		})
		if err != nil {
			log.Printf("redis fill %s: %v", seasonID, err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

func questionsKey(seasonID string) string {
	return "season:" + seasonID + ":questions"
}

func answersKey(seasonID string) string {
	return "season:" + seasonID + ":answers"
}
