package prompts

import (
	"fmt"
	"strings"

	"personachat/models"
)

// HistoryWindow is the number of recent messages embedded in prompts to keep
// prompt size bounded.
const HistoryWindow = 10

// FormatHistory renders recent chat history as "Name: text" lines for
// embedding in a prompt. Names come from the profile lookup; unknown senders
// fall back to their key.
func FormatHistory(messages []models.Message, names map[string]string) string {
	if len(messages) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, msg := range messages {
		name := msg.Sender
		if msg.Sender == models.UserSender {
			name = "User"
		} else if n, ok := names[msg.Sender]; ok {
			name = n
		}
		fmt.Fprintf(&b, "%s: %s\n", name, msg.Text)
	}

	return b.String()
}

// BuildSelectionPrompt constructs the responder-selection prompt. The model
// is asked for a ranked JSON array of character keys.
func BuildSelectionPrompt(characters []models.CharacterProfile, history []models.Message, newMessage models.Message, maxResponders int) string {
	memberInfo := "Group members:\n"
	names := make(map[string]string, len(characters))
	for _, char := range characters {
		names[char.Key] = char.Name
		memberInfo += fmt.Sprintf("- %s (key: %s): personality %s; speaking style: %s\n",
			char.Name, char.Key, strings.Join(char.Personality, ", "), char.SpeakingStyle)
	}

	historyText := FormatHistory(history, names)

	return fmt.Sprintf(`You are a responder selector for a group chat of fictional characters. Decide which characters should respond to the new message and in what order.

%s
%s
New message from the user: "%s"

Consider:
1. Is the message directed at specific characters by name?
2. Is it a greeting or a question for the whole group?
3. Does it touch a topic a particular character cares about?

Respond ONLY with a JSON array of at most %d objects, ranked by how likely each character is to respond, using the character keys listed above:
[{"key": "character_key", "reason": "one line why"}]

If only one character should respond, return a single-element array. Do not include any character key not listed above.`,
		memberInfo, historyText, newMessage.Text, maxResponders)
}

// BuildReplyPrompt constructs the prompt for one character's reply to a user
// message in a group chat.
func BuildReplyPrompt(speaker models.CharacterProfile, others []models.CharacterProfile, history []models.Message, userMessage string) string {
	names := map[string]string{speaker.Key: speaker.Name}
	otherNames := make([]string, 0, len(others))
	for _, char := range others {
		otherNames = append(otherNames, char.Name)
		names[char.Key] = char.Name
	}

	membersInfo := ""
	if len(otherNames) > 0 {
		membersInfo = fmt.Sprintf("Other group members: %s", strings.Join(otherNames, ", "))
	}

	historyText := FormatHistory(history, names)

	return fmt.Sprintf(`You are %s in a group chat. %s

Your personality: %s
Your speaking style: %s
%s
%sUser just said: "%s"

Guidelines:
- Stay in character with your unique personality
- If you disagree with someone, express it respectfully
- Reference previous messages when appropriate
- Keep responses conversational (1-2 sentences)
- Don't use quotes around your response

Respond as %s:`,
		speaker.Name, membersInfo,
		strings.Join(speaker.Personality, ", "),
		speaker.SpeakingStyle,
		catchphraseLine(speaker),
		historyText, userMessage,
		speaker.Name)
}

// BuildTurnPrompt constructs the prompt for one autonomous turn. Debates get
// argumentative framing, discussions conversational framing.
func BuildTurnPrompt(speaker models.CharacterProfile, others []models.CharacterProfile, topic string, history []models.Message, debate bool, turn int) string {
	names := map[string]string{speaker.Key: speaker.Name}
	otherNames := make([]string, 0, len(others))
	for _, char := range others {
		otherNames = append(otherNames, char.Name)
		names[char.Key] = char.Name
	}

	historyText := FormatHistory(history, names)

	if debate {
		return fmt.Sprintf(`You are %s in a debate about "%s" with %s.

Your personality: %s
Your speaking style: %s
%s
%s
This is turn %d of the debate. Present your argument passionately but respectfully.
Be specific, use examples, and counter previous points if relevant.
Respond in 1-2 sentences that show your character's unique perspective.

Your response:`,
			speaker.Name, topic, strings.Join(otherNames, ", "),
			strings.Join(speaker.Personality, ", "),
			speaker.SpeakingStyle,
			catchphraseLine(speaker),
			historyText, turn)
	}

	return fmt.Sprintf(`You are %s in a discussion about "%s" with %s.

Your personality: %s
Your speaking style: %s
%s
%s
Continue the discussion naturally. Share your thoughts, ask questions, or respond to what others have said.
Stay true to your character while keeping the conversation flowing.
Respond in 1-2 sentences.

Your response:`,
		speaker.Name, topic, strings.Join(otherNames, ", "),
		strings.Join(speaker.Personality, ", "),
		speaker.SpeakingStyle,
		catchphraseLine(speaker),
		historyText)
}

// BuildConclusionPrompt constructs the lightweight check asking whether an
// autonomous conversation has naturally concluded.
func BuildConclusionPrompt(topic string, history []models.Message, names map[string]string) string {
	historyText := FormatHistory(history, names)

	return fmt.Sprintf(`A group of fictional characters is having a conversation about "%s".

%s
Has this conversation reached a natural conclusion (points made, nothing new being added, participants wrapping up)?

Answer with a single word: YES or NO.`,
		topic, historyText)
}

// BuildProfilePrompt constructs the character-profile generation prompt. The
// model is asked for a JSON object describing the named character.
func BuildProfilePrompt(name string) string {
	return fmt.Sprintf(`Analyze the fictional character "%s" and describe them for a chat simulation.

If the character is not well-known, create a plausible profile based on the name and common character archetypes.

Respond ONLY with a JSON object with these keys:
{
  "personality": ["3-6 short personality traits"],
  "speaking_style": "how they talk, language patterns, formality level",
  "backstory": "2-4 sentences of background",
  "catchphrases": ["2-4 memorable quotes or verbal tics"]
}`, name)
}

func catchphraseLine(char models.CharacterProfile) string {
	if len(char.Catchphrases) == 0 {
		return ""
	}
	return fmt.Sprintf("Your catchphrases: %s\n", strings.Join(char.Catchphrases, " | "))
}

// SanitizeReply cleans up a generated reply: trims whitespace and removes
// wrapping quotes the model sometimes adds despite instructions.
func SanitizeReply(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
