package prompt

// Template is a prompt text tagged with a version so generated stories can be traced
type Template struct {
	Version string
	Text    string
}

// CustomVersion marks a template whose text came from user configuration
const CustomVersion = "custom"

// DifferentInstruction is appended to the story prompt after a similarity rejection
const DifferentInstruction = "\n\nIMPORTANT: Generate something completely different from any previous story. " +
	"Use new characters, a new setting, and a new plot."

// StoryTemplateV1 is the narrative template for first drafts.
// Fields: language, num_paragraphs, story_type, input_type, input_value, additional_instructions.
var StoryTemplateV1 = Template{
	Version: "v1",
	Text: `You are a master storyteller AI with deep knowledge of narrative structures. Create a captivating story based on the following structure. Each part should be unique and contribute to a well-rounded, engaging narrative.

Instructions:
- **Title:** A unique title representing the theme of the story.
- **Prologue:** Introduce the setting and main premise, giving readers a sense of the world and context.
- **Main Characters:**
    - List each main character with their name, age, role, and brief description.
    - Briefly describe key traits, motivations, and relationships essential to the story arc.
- **Chapters:**
    - **Chapter 1:** Introduce the protagonist, setting, and initial situation.
    - **Chapter 2:** Present the main conflict or challenge faced by the protagonist.
    - **Chapter 3:** Show the development and complications leading up to the climax.
    - **Chapter 4:** Describe the climax with heightened tension and character decisions.
    - **Chapter 5:** Resolve the main conflict, showing the character's transformation.
    - **Chapter 6:** Epilogue that provides closure and hints at the protagonist's future.

Each paragraph should have a minimum of 5 sentences. Avoid repetition and ensure each section adds to the plot's progression.

**Additional Details:**
- Language: {language}
- Paragraphs: {num_paragraphs}
- Story Type: {story_type}
- Input Type: {input_type}
- Input Value: {input_value}
- Additional Instructions: {additional_instructions}

Focus on emotional depth, vivid imagery, and a logical narrative flow that immerses the reader in the story's journey.
`,
}

// RevisionTemplateV1 asks the model to rework an existing story.
// Fields: language, story, feedback.
var RevisionTemplateV1 = Template{
	Version: "v1",
	Text: `You are a master storyteller AI. Revise the story below according to the reader's feedback.

Keep the same overall structure (title, prologue, main characters, chapters and epilogue) unless the feedback asks otherwise. Write the complete revised story in {language}, not a summary of the changes.

STORY:
{story}

READER FEEDBACK:
{feedback}

Return only the revised story.
`,
}

// Resolve returns the configured override when present, otherwise the built-in template
func Resolve(builtin Template, override string) Template {
	if override == "" {
		return builtin
	}
	return Template{Version: CustomVersion, Text: override}
}
