package bot

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"chat-sentiment-demo/backend/analysis"
)

// topicPattern maps a topic to the keywords that reveal it. Patterns are
// checked in order, so earlier topics win when a message mentions several.
type topicPattern struct {
	topic    string
	display  string
	keywords []string
}

var topicPatterns = []topicPattern{
	{"service", "service", []string{"service", "support", "help", "assistance", "customer service"}},
	{"product", "product", []string{"product", "item", "purchase", "order", "bought"}},
	{"delay", "delay", []string{"delay", "wait", "waiting", "slow", "long time", "forever"}},
	{"price", "pricing", []string{"price", "cost", "expensive", "cheap", "money", "refund", "charge"}},
	{"quality", "quality", []string{"quality", "broken", "defective", "damaged", "doesn't work", "not working"}},
	{"website", "website", []string{"website", "site", "app", "login", "account", "password"}},
	{"delivery", "delivery", []string{"delivery", "shipping", "shipment", "arrived", "package"}},
	{"feature", "feature", []string{"feature", "function", "option", "setting", "button"}},
}

var greetingKeywords = []string{"hello", "hi", "hey", "greetings", "good morning", "good afternoon", "good evening"}

var goodbyeKeywords = []string{"bye", "goodbye", "see you", "take care", "thanks bye", "that's all"}

var greetingReplies = []string{
	"Hello! How can I help you today?",
	"Hi there! What brings you here?",
	"Hey! What can I do for you?",
	"Welcome! How may I assist you?",
}

var goodbyeReplies = []string{
	"Goodbye! Have a great day!",
	"Take care! Feel free to come back anytime.",
	"See you later! Thanks for chatting.",
	"Bye! Hope I was helpful today.",
}

var topicReplies = map[analysis.Sentiment][]string{
	analysis.SentimentNegative: {
		"I'm sorry to hear about the %s issue. Let me help you with that.",
		"I understand your frustration with the %s. What specifically went wrong?",
		"That's concerning about the %s. Can you tell me more details?",
		"I apologize for the %s problem. Let's work on resolving this together.",
		"Thank you for bringing up the %s issue. How can I make this right?",
	},
	analysis.SentimentPositive: {
		"That's wonderful to hear about the %s! Is there anything else I can help with?",
		"I'm so glad the %s met your expectations!",
		"Great feedback about the %s! We appreciate it.",
		"Fantastic! Happy to hear the %s worked out well for you.",
	},
	analysis.SentimentNeutral: {
		"I see you're asking about the %s. What would you like to know?",
		"Got it, this is about the %s. How can I assist?",
		"Understood. What specifically about the %s do you need help with?",
	},
}

var plainReplies = map[analysis.Sentiment][]string{
	analysis.SentimentNegative: {
		"I'm sorry to hear that. Tell me more about what's bothering you.",
		"That sounds frustrating. How can I help?",
		"I understand. What specifically is the issue?",
		"Let's see what we can do about this. What's going on?",
		"I hear your concern. Can you provide more details?",
	},
	analysis.SentimentPositive: {
		"That's great to hear! What else can I help with?",
		"Wonderful! I'm glad you're happy.",
		"Awesome! Is there anything else you need?",
		"That's fantastic! Thanks for sharing.",
		"I'm pleased to hear that! Anything else on your mind?",
	},
	analysis.SentimentNeutral: {
		"I see. Tell me more.",
		"Got it. How can I assist you?",
		"Okay. What do you need help with?",
		"Alright. What's on your mind?",
		"I'm here to help. What would you like to discuss?",
	},
}

var followUpReplies = map[analysis.Sentiment][]string{
	analysis.SentimentNegative: {
		"I'm still here to help. What else is troubling you?",
		"Let's continue working on this. What other concerns do you have?",
		"I want to make sure we address everything. What else?",
	},
	analysis.SentimentPositive: {
		"Glad things are improving! Anything else?",
		"That's progress! What else can I do for you?",
		"Great! Is there anything more you'd like to discuss?",
	},
	analysis.SentimentNeutral: {
		"Okay, what else would you like to talk about?",
		"Got it. Anything else I can help with?",
		"I see. What other questions do you have?",
	},
}

const followUpChance = 0.3

// Engine produces context-aware support replies keyed on the detected
// sentiment of the user's message
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a reply engine with the given random source seed
func NewEngine(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// Reply picks a response for a user message. turn is the 1-based count of
// user messages so far in the session; after the second message the engine
// occasionally asks a follow-up question instead of reacting directly.
func (e *Engine) Reply(message string, sentiment analysis.Sentiment, turn int) string {
	lower := strings.ToLower(strings.TrimSpace(message))

	if isGreeting(lower) {
		return e.pick(greetingReplies)
	}
	if containsAny(lower, goodbyeKeywords) {
		return e.pick(goodbyeReplies)
	}

	if turn > 2 && e.roll() < followUpChance {
		if replies, ok := followUpReplies[sentiment]; ok {
			return e.pick(replies)
		}
	}

	if topic, found := extractTopic(lower); found {
		if replies, ok := topicReplies[sentiment]; ok {
			return fmt.Sprintf(e.pick(replies), topic)
		}
	}

	if replies, ok := plainReplies[sentiment]; ok {
		return e.pick(replies)
	}

	return e.pick(plainReplies[analysis.SentimentNeutral])
}

// extractTopic returns the display name of the first topic whose keywords
// appear in the message
func extractTopic(lower string) (string, bool) {
	for _, p := range topicPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.display, true
			}
		}
	}
	return "", false
}

// isGreeting matches standalone greetings only, so "hi, my order is broken"
// still gets a real answer
func isGreeting(lower string) bool {
	for _, greet := range greetingKeywords {
		if lower == greet || strings.HasPrefix(lower, greet+" ") {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func (e *Engine) pick(replies []string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return replies[e.rng.Intn(len(replies))]
}

func (e *Engine) roll() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}
