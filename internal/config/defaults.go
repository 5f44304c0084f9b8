package config

const (
	// DefaultOllamaBaseURL is where a local Ollama server listens
	DefaultOllamaBaseURL = "http://localhost:11434"
	// DefaultOpenAIBaseURL is used when provider=openai and no base_url is set
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultModelName is a small model that runs on modest hardware
	DefaultModelName = "llama3.2:1b"
	// DefaultHeading titles exported documents
	DefaultHeading = "AI Generated Story"
	// DefaultAdditionalInstructions fills the template's additional_instructions field
	DefaultAdditionalInstructions = "Focus on emotional resonance and vivid storytelling"
)

// SampleConfig is printed by `storyteller config init` as a starting point
const SampleConfig = `# storyteller configuration

[model]
provider = "ollama"                 # "ollama" or "openai" (any OpenAI-compatible server)
base_url = "http://localhost:11434"
model_name = "llama3.2:1b"
temperature = 0.7
context_size = 2048
num_thread = 4
http_timeout_seconds = 60
# disable_streaming = true

[generation]
max_attempts = 3
min_words = 50
shingle_size = 50
similarity_threshold = 0.3
language = "English"
num_paragraphs = 5
# reset_corpus_each_story = false

[export]
heading = "AI Generated Story"
output_dir = "."
# keep_markdown = false

# [prompt_templates]
# story = """..."""     # placeholders: {language} {num_paragraphs} {story_type} {input_type} {input_value} {additional_instructions}
# revision = """..."""  # placeholders: {language} {story} {feedback}
`
