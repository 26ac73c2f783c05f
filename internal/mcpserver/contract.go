package mcpserver

// SessionFormatContract describes the stored session format for LLM
// consumers reading clueword sessions.
const SessionFormatContract = `# Clueword Session Format

A session is one investigator's labeled comparison of two audio exemplars.

## Structure

` + "```" + `json
{
  "id": 12,
  "session_name": "Case-001",
  "case_number": "CN-1",
  "police_station": "Central",
  "district": "North",
  "cr_number": "CR-9",
  "speaker_name": "Speaker",
  "question_filename": "q.wav",
  "control_filename": "c.wav",
  "question_file_path": "/static/temp_standardized/question_standardized.wav",
  "control_file_path": "/static/temp_standardized/control_standardized.wav",
  "bandpass_enabled": true,
  "annotations": {
    "question": [{"label": "hello", "start": 1.0, "end": 2.5}],
    "control":  [{"label": "hello", "start": 0.5, "end": 1.25}]
  },
  "created_at": "2025-01-20T10:00:00Z",
  "updated_at": "2025-01-20T10:05:00Z"
}
` + "```" + `

## Rules

1. **Tracks** are exactly ` + "`" + `question` + "`" + ` (the disputed recording) and ` + "`" + `control` + "`" + ` (the
   reference exemplar). Both keys are always present; an empty track is ` + "`" + `[]` + "`" + `.
2. **Times** are seconds from the start of the standardized audio, ` + "`" + `start < end` + "`" + `.
3. **Labels** are the clueword spoken in the segment, trimmed, never empty. The same
   label on both tracks marks a pair to compare.
4. **Order** within a track is insertion order and carries no meaning.
5. **Region handles** and local annotation ids are never stored; a client rebuilds
   them from the times when it reloads the audio.
6. ` + "`" + `id` + "`" + ` is assigned by the server on the first save; later saves update it in place.
`
