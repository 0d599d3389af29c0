package service

import (
	"github.com/smartcity/simulator/internal/domain"
)

// SnapshotRepository and Gateway are re-exported from domain for convenience
type (
	SnapshotRepository = domain.SnapshotRepository
	Gateway            = domain.Gateway
)
