package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/quiz"
)

func contentPrompt(req Request, lengths quiz.Config) string {
	switch req.Kind {
	case game.KindQuiz:
		n := lengths.Length(req.Difficulty)
		return fmt.Sprintf(`Act as a Finnish primary school teacher and non-fiction author.
Write EXACTLY %d multiple-choice questions about the topic %q.
Rules:
1. Facts must be correct.
2. Questions must be clear and unambiguous.
3. Exactly one choice is correct; "correct" is its 0-based index in "choices".
4. Two to four short choices per question.
Answer with ONLY a JSON object, all texts in Finnish, shaped like:
{"difficulty":%q,"levels":[{"question":"...","choices":["...","..."],"correct":0,"explanation":"..."}]}`,
			n, req.Topic, string(req.Difficulty))

	case game.KindHangman:
		return fmt.Sprintf(`Act as a Finnish-speaking teacher. Give EXACTLY %d Finnish words about the topic %q for a hangman game.
Rules:
1. Every word fits the topic.
2. Letters A-Ö only, 4 to 12 characters.
3. Everyday words, no jargon.
4. Mixed difficulty, from easy to hard.
5. No repeats.
Answer with ONLY a JSON object: {"topic":%q,"words":["..."]}`,
			HangmanWords, req.Topic, req.Topic)

	case game.KindMemory:
		return fmt.Sprintf(`Act as a Finnish-speaking teacher. Write EXACTLY %d memory card pairs about the topic %q.
Rules:
1. Every front is unique.
2. Every back is unique.
3. Texts are short, at most 15 characters.
Answer with ONLY a JSON object: {"pairs":[{"front":"...","back":"..."}]}`,
			MemoryPairs, req.Topic)
	}
	return ""
}

func metadataPrompt(kind game.Kind, topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are given a game type and a topic.
Create:
1. A short, inviting Finnish title for the game (at most 20 characters).
2. The school subject of the Finnish basic education curriculum it belongs to.

Game type: %s
Topic: %s

The subject MUST be one of:
`, kind, topic)
	for _, s := range Subjects {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, `If nothing fits, use %q.
Answer with ONLY a JSON object: {"title":"...","subject":"..."}`, DefaultSubject)
	return b.String()
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func decodeObject(content string, v any) error {
	return json.Unmarshal([]byte(stripFence(content)), v)
}
