package prompts

import "fmt"

// Style is a visual style preset applied to every image prompt in a project.
type Style struct {
	ID     int
	Name   string
	Prompt string
}

var styles = []Style{
	{ID: 1, Name: "Anime", Prompt: "vibrant anime style, clean line art, cel shading"},
	{ID: 2, Name: "Watercolor", Prompt: "soft watercolor illustration, muted palette, textured paper"},
	{ID: 3, Name: "Cinematic", Prompt: "cinematic photorealistic render, dramatic lighting, shallow depth of field"},
	{ID: 4, Name: "Comic", Prompt: "bold western comic book style, heavy inks, halftone shading"},
}

// StyleByID returns the style preset for an id, or nil when unknown.
func StyleByID(id int) *Style {
	for i := range styles {
		if styles[i].ID == id {
			return &styles[i]
		}
	}
	return nil
}

func StoryOutline(name, description string) string {
	return fmt.Sprintf(
		"Write a concise story outline for a short animated video titled %q. "+
			"Premise: %s\n"+
			"Cover the setting, the main conflict, and the resolution in under 400 words.",
		name, description)
}

func CharacterExtraction(outline, styleName, stylePrompt string) string {
	return fmt.Sprintf(
		"Extract the main characters from the story outline below. "+
			"Respond with a JSON object of the form "+
			`{"characters":[{"name":"...","description":"...","traits":{"gender":"...","age":"...","appearance":"...","personality":"...","clothing":"..."},"imagePrompt":"..."}]}. `+
			"Each imagePrompt must be a standalone portrait prompt in the %s style (%s).\n\n"+
			"Outline:\n%s",
		styleName, stylePrompt, outline)
}

func CharacterImage(name, traits, stylePrompt string) string {
	return fmt.Sprintf(
		"Character portrait of %s. %s Full body, neutral background, %s.",
		name, traits, stylePrompt)
}

func CoverImage(projectName, styleName, stylePrompt, aspectRatio string) string {
	return fmt.Sprintf(
		"Cover artwork for the story %q in the %s style: %s. "+
			"Composition suited for a %s frame, no text.",
		projectName, styleName, stylePrompt, aspectRatio)
}

func StoryboardBreakdown(outline, styleName, stylePrompt string) string {
	return fmt.Sprintf(
		"Break the story outline below into 6-10 storyboard shots. "+
			"Respond with a JSON object of the form "+
			`{"storyboards":[{"scene":"...","imagePrompt":"...","videoPrompt":"..."}]}. `+
			"Each imagePrompt must render the shot in the %s style (%s); each videoPrompt "+
			"describes camera motion and action for a 10 second clip.\n\n"+
			"Outline:\n%s",
		styleName, stylePrompt, outline)
}
