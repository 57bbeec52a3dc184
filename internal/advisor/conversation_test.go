package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kinggekko/core/internal/domain"
)

func TestConversationStore_SeedsSystemPromptOnFirstUse(t *testing.T) {
	s := newConversationStore(20)
	msgs := s.messagesFor("llama3", domain.RoleTechnicalAnalysis)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "system", msgs[0].Role)
}

func TestConversationStore_AppendGrowsHistory(t *testing.T) {
	s := newConversationStore(20)
	s.append("llama3", domain.RoleTechnicalAnalysis, "hello", "hi there")
	msgs := s.messagesFor("llama3", domain.RoleTechnicalAnalysis)
	assert.Len(t, msgs, 3) // system + user + assistant
}

func TestConversationStore_TrimsButKeepsSystemMessage(t *testing.T) {
	s := newConversationStore(5)
	for i := 0; i < 10; i++ {
		s.append("llama3", domain.RoleTechnicalAnalysis, "q", "a")
	}
	msgs := s.messagesFor("llama3", domain.RoleTechnicalAnalysis)
	assert.LessOrEqual(t, len(msgs), 5)
	assert.Equal(t, "system", msgs[0].Role)
}

func TestCalibrationFor_KnownAndUnknownRoles(t *testing.T) {
	assert.Equal(t, 1.1, calibrationFor(domain.RoleRiskManagement))
	assert.Equal(t, 0.7, calibrationFor(domain.RoleGeneralPurpose))
	assert.Equal(t, 1.0, calibrationFor(domain.AdvisorRole("Unknown")))
}
