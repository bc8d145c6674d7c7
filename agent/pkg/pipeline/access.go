package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/galleta-assistant/galleta/agent/pkg/llm"
)

const (
	DirectiveNoValidID   = "Acceso denegado. No se proporcionó un ID de usuario válido."
	DirectiveUnknownRole = "Rol de usuario no reconocido."
)

// CheckAccess decides the grant for the claimed role and prepends exactly
// one directive message describing it. It runs at most once per state.
func CheckAccess(s *ConversationState) {
	if s.accessChecked {
		return
	}
	s.accessChecked = true

	var directive string
	switch {
	case s.UserRole.Elevated():
		s.AccessGranted = true
		directive = fmt.Sprintf("Eres un asistente con rol de %s. "+
			"Tienes acceso completo a toda la información de la base de datos. "+
			"Puedes consultar y modificar cualquier registro.", s.UserRole)
	case s.UserRole.SelfScoped() && validUserID(s.UserID):
		s.AccessGranted = true
		directive = fmt.Sprintf("Eres un asistente con rol de %s. "+
			"Solo puedes acceder a la información del usuario con ID %s. "+
			"No puedes consultar ni modificar información de otros usuarios.", s.UserRole, s.UserID)
	case s.UserRole.SelfScoped():
		s.AccessGranted = false
		directive = DirectiveNoValidID
	default:
		s.AccessGranted = false
		directive = DirectiveUnknownRole
	}

	s.Messages = append([]llm.Message{llm.System(directive)}, s.Messages...)
	if !s.AccessGranted {
		s.Reply = directive
	}
}

// validUserID reports whether id names a user. Zero is what clients send for
// "no user", so it counts as absent.
func validUserID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if f, err := strconv.ParseFloat(id, 64); err == nil && f == 0 {
		return false
	}
	return true
}
