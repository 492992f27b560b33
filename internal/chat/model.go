package chat

// Gemini Model IDs
//
// | Model Name             | API Model ID           | Use Case                          |
// |------------------------|------------------------|-----------------------------------|
// | Gemini 2.0 Flash       | gemini-2.0-flash       | Audio/video transcription, JSON   |
// | Gemini 2.5 Flash       | gemini-2.5-flash       | Longer meetings, better reasoning |
// | Gemini 2.5 Flash-Lite  | gemini-2.5-flash-lite  | High-throughput, lowest cost      |
const (
	ModelGemini20Flash     = "gemini-2.0-flash"
	ModelGemini25Flash     = "gemini-2.5-flash"
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
)

// DefaultTranscriptionModel and DefaultAnalysisModel are used when the
// GEMINI_TRANSCRIPTION_MODEL / GEMINI_ANALYSIS_MODEL overrides are unset.
const (
	DefaultTranscriptionModel = ModelGemini20Flash
	DefaultAnalysisModel      = ModelGemini20Flash
)
