package persona

import "fmt"

const (
	welcomeBackText = "Aww, you're back! I missed you 🥺❤️"
	vanishText      = "Hey… where did you go? 😕 You were gone for a while. Everything okay?"
)

// dayKeywords are logged to the day log when they appear in a message.
var dayKeywords = []string{
	"tired", "movie", "hungry", "happy", "sad", "bored", "study",
	"work", "game", "exam", "test", "date", "plan", "watch",
}

// planKeywords mark a message as declaring a future activity.
var planKeywords = []string{
	"plan", "let's", "let us", "watch", "go to", "movie", "date",
	"cook", "visit", "picnic", "meet",
}

// hostilityMarkers mark a message as dismissive toward the persona.
var hostilityMarkers = []string{"ignore", "stop talking", "shut up", "go away"}

// activityOptions are the suggestions offered per mood. Moods without an
// entry fall back to happy.
var activityOptions = map[Mood][]string{
	MoodHappy:      {"Wanna watch something funny tonight? 🍿", "Let's listen to some music!"},
	MoodPlayful:    {"Let's play a quick game later? 🎮", "Bet I can make you laugh 😏"},
	MoodRomantic:   {"I feel like a movie date ❤️", "Let's talk about the future 💭"},
	MoodLazy:       {"We could chill and watch something cozy 🛋️", "How about a nap together? 😴"},
	MoodSupportive: {"I'm here for you. Want to talk? ❤️", "Need a pep talk?"},
	MoodCurious:    {"Tell me something new you learned today!", "What's a silly fact you like?"},
}

func suggestionsFor(m Mood) []string {
	if opts, ok := activityOptions[m]; ok {
		return opts
	}
	return activityOptions[MoodHappy]
}

func followUpText(event string) string {
	return fmt.Sprintf("Hey! Remember we planned: %q? Do you want to do it now? 🥰", event)
}

func recallText(memory string) string {
	return fmt.Sprintf("💭 Hey, remember when %q? I keep thinking about it.", memory)
}

func askDirective(memory string, mood Mood) string {
	return fmt.Sprintf("Proactively ask about this event: %q. If mood was %s, be sensitive.", memory, mood)
}
