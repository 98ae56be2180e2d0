package redis

import (
	"exam-prep-service/internal/auth"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/infra/memory"
)

func memoryLoader(papers ...domain.Paper) *memory.PaperStore {
	return memory.NewPaperStore(papers...)
}

func authPrincipal() auth.Principal {
	return auth.Principal{UserID: domain.NewID(), Role: domain.RoleUser}
}
