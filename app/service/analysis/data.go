package analysis

import (
	"context"
	"meetassist/app/service/usage"
	"time"
)

type Result struct {
	Summary            string            `json:"summary"`
	Insights           []string          `json:"insights"`
	ActionItems        []string          `json:"actionItems"`
	Sentiment          Sentiment         `json:"sentiment"`
	DiarizedTranscript []DiarizedSegment `json:"diarizedTranscript,omitempty"`
}

type Sentiment struct {
	Overall string           `json:"overall"`
	Topics  []TopicSentiment `json:"topics"`
}

type TopicSentiment struct {
	Topic     string `json:"topic"`
	Sentiment string `json:"sentiment"`
}

type DiarizedSegment struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type Suggestions struct {
	Suggestions []string `json:"suggestions"`
}

// LastSession is what remains of a session after it returns to idle.
type LastSession struct {
	EndedAt  time.Time    `json:"endedAt"`
	Tokens   usage.Tokens `json:"tokens"`
	Analysis *Result      `json:"analysis,omitempty"`
}

// View is the current dashboard content.
type View struct {
	Running         bool      `json:"running"`
	Result          *Result   `json:"analysis,omitempty"`
	Suggestions     []string  `json:"suggestions"`
	CustomerContext []string  `json:"customerContext"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Generator issues the structured-output model calls.
type Generator interface {
	Analyze(ctx context.Context, prompt string, diarize bool) (*Result, usage.Tokens, error)
	Suggest(ctx context.Context, prompt string) ([]string, usage.Tokens, error)
}

type ContextLookup interface {
	Lookup(ctx context.Context, phone string) ([]string, error)
}

// Session is the live connection the loop reads participant info from and speaks into.
type Session interface {
	SendText(text string) error
	SystemAudioConnected() bool
}

type Store interface {
	Get(bucket, key string, target any) (bool, error)
	Put(bucket, key string, value any) error
}
