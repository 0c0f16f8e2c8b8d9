package analysis

import (
	"fmt"
	"meetassist/app/service/settings"
	"strings"

	"github.com/elliotchance/pie/v2"
)

const detailDetailed = "detailed"

type promptInput struct {
	Settings        settings.Analysis
	SystemAudio     bool
	CustomerContext []string
	Transcript      string
}

func (p promptInput) diarize() bool {
	return p.Settings.Diarization || p.SystemAudio
}

func detailDirective(section, level string) string {
	if level == detailDetailed {
		return fmt.Sprintf("- %s: detailed, cover every relevant point with specifics.", section)
	}
	return fmt.Sprintf("- %s: brief, only the most important points in short sentences.", section)
}

func diarizationDirective(p promptInput) string {
	switch {
	case p.SystemAudio:
		return "The transcript has two audio sources. Lines from the user come from the microphone, " +
			"other participants are heard through system audio. Produce diarizedTranscript labeling each " +
			"segment as \"You\" or as the other participant (\"Participant 1\", \"Participant 2\" when several speak)."
	case p.Settings.Diarization:
		return "Identify the distinct speakers in the transcript and produce diarizedTranscript, labeling " +
			"each segment \"Speaker 1\", \"Speaker 2\" and so on, in order of appearance."
	default:
		return ""
	}
}

func buildAnalysisPrompt(p promptInput) string {
	var builder strings.Builder

	builder.WriteString("You are a meeting assistant. Analyze the conversation transcript below and return the analysis object.\n\n")

	if len(p.CustomerContext) > 0 {
		builder.WriteString("Known customer context:\n")
		builder.WriteString(strings.Join(pie.Map(p.CustomerContext, func(doc string) string {
			return "- " + doc
		}), "\n"))
		builder.WriteString("\n\n")
	}

	builder.WriteString("Level of detail:\n")
	builder.WriteString(detailDirective("summary", p.Settings.SummaryDetail))
	builder.WriteString("\n")
	builder.WriteString(detailDirective("insights", p.Settings.InsightsDetail))
	builder.WriteString("\n")
	builder.WriteString(detailDirective("actionItems", p.Settings.ActionItemsDetail))
	builder.WriteString("\n\n")

	if directive := diarizationDirective(p); directive != "" {
		builder.WriteString(directive)
		builder.WriteString("\n\n")
	}

	builder.WriteString("Sentiment must be positive, neutral or negative, overall and per topic.\n\n")
	builder.WriteString("Transcript:\n")
	builder.WriteString(p.Transcript)

	return builder.String()
}

func buildSuggestionsPrompt(p promptInput) string {
	var builder strings.Builder

	builder.WriteString("You help the user during a live meeting. Based on the transcript below, ")
	builder.WriteString("suggest exactly three short replies or questions the user could say next.\n\n")

	if len(p.CustomerContext) > 0 {
		builder.WriteString("Known customer context:\n")
		for _, doc := range p.CustomerContext {
			builder.WriteString("- ")
			builder.WriteString(doc)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString("Transcript:\n")
	builder.WriteString(p.Transcript)

	return builder.String()
}

func buildRecapPrompt(summary string) string {
	return "Say a one-sentence spoken recap of the meeting so far, based on this summary. " +
		"Do not add anything else.\n\nSummary: " + summary
}
