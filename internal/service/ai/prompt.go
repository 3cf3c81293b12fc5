package ai

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zhouzirui/chat-widget/internal/model/chat"
)

// PromptConfig describes the support desk the fallback model speaks for.
type PromptConfig struct {
	ChatTitle string
	Locale    string
	// Knowledge holds the configured canned replies, offered to the model as
	// reference answers.
	Knowledge chat.ResponseMapping
}

// PromptTemplate defines the structure of the fallback system prompt
type PromptTemplate struct {
	SystemPrompt string
	ContextRules []string
}

func defaultTemplate() PromptTemplate {
	return PromptTemplate{
		SystemPrompt: "Você é o assistente virtual do canal %q. Responda de forma curta, cordial e objetiva.",
		ContextRules: []string{
			"Responda no idioma %s, a menos que o usuário escreva em outro idioma",
			"Use as respostas de referência quando a pergunta for parecida com uma delas",
			"Se não souber a resposta, diga que um atendente humano pode ajudar",
			"Nunca invente horários, preços ou políticas que não estejam nas referências",
		},
	}
}

// BuildSystemPrompt renders the system prompt for cfg.
func BuildSystemPrompt(cfg PromptConfig) string {
	tpl := defaultTemplate()
	locale := cfg.Locale
	if locale == "" {
		locale = "pt-BR"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf(tpl.SystemPrompt, cfg.ChatTitle))
	b.WriteString("\n\nRegras:\n")
	for i, rule := range tpl.ContextRules {
		if i == 0 {
			rule = fmt.Sprintf(rule, locale)
		}
		b.WriteString("- ")
		b.WriteString(rule)
		b.WriteString("\n")
	}

	if len(cfg.Knowledge) > 0 {
		b.WriteString("\nRespostas de referência:\n")
		keys := make([]string, 0, len(cfg.Knowledge))
		for k := range cfg.Knowledge {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("- %q: %s\n", k, cfg.Knowledge[k].Text))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
