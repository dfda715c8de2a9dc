package ai

import (
	"fmt"
	"strings"
)

// DefaultInstruction is sent together with every clip. Field workers record in
// Spanish and the results feed an NGO database, so the prompt and the expected
// keys ("titulo", "puntos_importantes") are Spanish.
const DefaultInstruction = "Transcribe este audio, analiza su contenido y responde en formato JSON; " +
	"es para enviar a una base de datos de una ONG. Es importante que trates de determinar " +
	"un título del audio (sobre lo que trate), clasifica los puntos importantes:"

// BuildTranscriptPrompt builds the system and user prompts used when the
// provider transcribes first and classifies the transcript in a second call.
func BuildTranscriptPrompt(instruction, transcript string) (string, string) {
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction
	}

	systemPrompt := `Eres un asistente que organiza notas de voz de trabajo de campo.
No inventes información: usa solo lo que aparece en la transcripción.
Responde SOLO con JSON válido, sin texto adicional.`

	userPrompt := fmt.Sprintf(`%s

Transcripción:
"""
%s
"""

Formato:
{
  "titulo": "título breve",
  "puntos_importantes": ["punto 1", "punto 2"],
  "transcripcion": "texto completo"
}`, instruction, transcript)

	return systemPrompt, userPrompt
}
