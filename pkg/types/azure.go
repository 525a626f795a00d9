package types

import "time"

// PrincipalType classifies the object ID being audited.
type PrincipalType string

const (
	PrincipalUser             PrincipalType = "user"
	PrincipalServicePrincipal PrincipalType = "servicePrincipal"
	PrincipalGroup            PrincipalType = "group"
	PrincipalUnknown          PrincipalType = "unknown"
)

// ResolutionFailure records why a remote lookup did not produce a result.
type ResolutionFailure string

const (
	FailureTimeout      ResolutionFailure = "timeout"
	FailureAccessDenied ResolutionFailure = "accessDenied"
	FailureNotFound     ResolutionFailure = "notFound"
)

// Identity is the resolved principal under audit. Built once per run and
// never mutated afterwards.
type Identity struct {
	ObjectID        string            `json:"objectId"`
	Type            PrincipalType     `json:"type"`
	DisplayName     string            `json:"displayName,omitempty"`
	ResolutionError ResolutionFailure `json:"resolutionError,omitempty"`
}

// GroupMembership is one transitive group the identity belongs to. The
// directory service computes the closure server-side and returns the set
// already deduplicated.
type GroupMembership struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
}

// RolePermissions is the flattened permission set of one role definition.
// Each category is the union of all permission statements on the role,
// sorted with duplicates removed.
type RolePermissions struct {
	ID             string   `json:"id"`
	Actions        []string `json:"actions"`
	NotActions     []string `json:"notActions"`
	DataActions    []string `json:"dataActions"`
	NotDataActions []string `json:"notDataActions"`
}

// ResolvedRole is one distinct role definition held by a principal, carrying
// every scope that references it. There is exactly one ResolvedRole per role
// definition ID in a principal's result set no matter how many raw
// assignments point at it.
type ResolvedRole struct {
	RoleName         string          `json:"roleName"`
	RoleDefinitionID string          `json:"roleDefinitionId"`
	Scopes           []string        `json:"scopes"`
	Permissions      RolePermissions `json:"permissions"`
}

// GroupRoles holds the RBAC roles a principal inherits through one group.
type GroupRoles struct {
	GroupID   string         `json:"groupId"`
	GroupName string         `json:"groupName"`
	Roles     []ResolvedRole `json:"roles"`
}

// DirectoryAssignmentType tags how an administrative directory role reached
// the identity.
type DirectoryAssignmentType string

const (
	AssignmentDirect    DirectoryAssignmentType = "direct"
	AssignmentInherited DirectoryAssignmentType = "inherited"
)

// DirectoryRoleAssignment is one Entra directory role held directly or
// through a group. InheritedFrom is set exactly when AssignmentType is
// inherited; the same role name can appear once directly plus once per
// distinct group it is inherited through.
type DirectoryRoleAssignment struct {
	RoleName         string                  `json:"roleName"`
	RoleDefinitionID string                  `json:"roleDefinitionId"`
	AssignmentType   DirectoryAssignmentType `json:"assignmentType"`
	InheritedFrom    string                  `json:"inheritedFrom,omitempty"`
}

// PimStatusEligible is the only activation status this tool reports on.
const PimStatusEligible = "eligible"

// PimEligibleEntraRole is a directory role the identity can activate through
// just-in-time elevation. The activation window bounds are optional.
type PimEligibleEntraRole struct {
	RoleName         string     `json:"roleName"`
	RoleDefinitionID string     `json:"roleDefinitionId"`
	Status           string     `json:"status"`
	StartDateTime    *time.Time `json:"startDateTime,omitempty"`
	EndDateTime      *time.Time `json:"endDateTime,omitempty"`
}

// PimEligibleRbacRole is an Azure RBAC role eligible for activation at a
// given scope. Uniqueness key is (RoleDefinitionID, Scope).
type PimEligibleRbacRole struct {
	RoleName         string `json:"roleName"`
	RoleDefinitionID string `json:"roleDefinitionId"`
	Scope            string `json:"scope"`
	Status           string `json:"status"`
}

type PimEligibility struct {
	EntraRoles []PimEligibleEntraRole `json:"entraRoles"`
	AzureRBAC  []PimEligibleRbacRole  `json:"azureRBAC"`
}

// SurfaceSummary carries the derived counts for the final report.
type SurfaceSummary struct {
	DirectRoleCount             int `json:"directRoleCount"`
	InheritedRoleCount          int `json:"inheritedRoleCount"`
	ContributingGroupCount      int `json:"contributingGroupCount"`
	DirectDirectoryRoleCount    int `json:"directDirectoryRoleCount"`
	InheritedDirectoryRoleCount int `json:"inheritedDirectoryRoleCount"`
	PimEligibleEntraRoleCount   int `json:"pimEligibleEntraRoleCount"`
	PimEligibleAzureRBACCount   int `json:"pimEligibleAzureRBACCount"`
}

// PermissionSurface is the aggregate report for one principal. It is built
// up as it moves through the resolution pipeline; an empty slice from any
// stage is a valid "no results" outcome, not an error.
type PermissionSurface struct {
	Identity            Identity                  `json:"identity"`
	DirectAzureRBAC     []ResolvedRole            `json:"directAzureRBAC"`
	InheritedFromGroups []GroupRoles              `json:"inheritedFromGroups"`
	EntraDirectoryRoles []DirectoryRoleAssignment `json:"entraDirectoryRoles"`
	PimEligible         PimEligibility            `json:"pimEligible"`
	Summary             SurfaceSummary            `json:"summary"`

	// Groups is the transitive membership set the downstream resolvers fan
	// out over. Reported through InheritedFromGroups, not serialized twice.
	Groups []GroupMembership `json:"-"`
}

// EnsureArrays replaces nil report sections with empty slices so an empty
// result serializes as [] rather than null. Degraded runs produce empty
// sections routinely, and the report shape must not change with them.
func (s *PermissionSurface) EnsureArrays() {
	if s.DirectAzureRBAC == nil {
		s.DirectAzureRBAC = []ResolvedRole{}
	}
	if s.InheritedFromGroups == nil {
		s.InheritedFromGroups = []GroupRoles{}
	}
	if s.EntraDirectoryRoles == nil {
		s.EntraDirectoryRoles = []DirectoryRoleAssignment{}
	}
	if s.PimEligible.EntraRoles == nil {
		s.PimEligible.EntraRoles = []PimEligibleEntraRole{}
	}
	if s.PimEligible.AzureRBAC == nil {
		s.PimEligible.AzureRBAC = []PimEligibleRbacRole{}
	}
}
