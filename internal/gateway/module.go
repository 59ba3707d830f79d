package gateway

import (
	"records-console/internal/config"
	"records-console/internal/features/permission"

	"go.uber.org/zap"
)

// NewResourceGateway selects the backend implementation from config.
func NewResourceGateway(cfg *config.Config, logger *zap.Logger) ResourceGateway {
	if cfg.GatewayMode == "memory" {
		logger.Warn("using in-memory records gateway; data is not persisted")
		g := NewMemoryGateway()
		SeedDemoUsers(g)
		return g
	}
	return NewRESTGateway(cfg, logger)
}

// SeedDemoUsers registers the accounts used for local development:
// "manager" holds every Real Estate grant, "agent" can edit leads but cannot write actions.
func SeedDemoUsers(g *MemoryGateway) {
	full := permission.Permission{CanRead: true, CanWrite: true, CanEdit: true, CanDelete: true}

	leads, actions := full, full
	leads.ModuleID, leads.FeatureID = permission.ModuleRealEstate, permission.FeatureLeads
	actions.ModuleID, actions.FeatureID = permission.ModuleRealEstate, permission.FeatureActions

	g.AddUser(MemoryUser{
		Info:        UserInfo{ID: 1, Username: "manager", FirstName: "Demo", LastName: "Manager", CompanyDomain: "demo.local"},
		Password:    "manager",
		Permissions: []permission.Permission{leads, actions},
	})
	g.AddUser(MemoryUser{
		Info:     UserInfo{ID: 2, Username: "agent", FirstName: "Demo", LastName: "Agent", CompanyDomain: "demo.local"},
		Password: "agent",
		Permissions: []permission.Permission{
			{ModuleID: permission.ModuleRealEstate, FeatureID: permission.FeatureLeads, CanRead: true, CanWrite: true, CanEdit: true},
			{ModuleID: permission.ModuleRealEstate, FeatureID: permission.FeatureActions, CanRead: true},
		},
	})
}
