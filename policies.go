package tugraz

import (
	"github.com/tu-graz-library/invenio-config-tugraz/logger"
)

// file transfer types
const (
	LocalTransferType     = "L"
	MultipartTransferType = "M"
)

// NeedLabelToAction reconciles the bucket/object labels of the files layer
// with record actions.
var NeedLabelToAction = map[string]string{
	"bucket-update": "update_files",
	"bucket-read":   "read_files",
	"object-read":   "read_files",
}

// AllowedRDMDifferences are the actions where the TU Graz record policy
// deliberately differs from the base record policy.
var AllowedRDMDifferences = []string{
	"authenticated",
	"create",
	"search",
	"view",
	"all",
	"search_drafts",
	"tugraz_authenticated",
}

// Records and files are changed through drafts, so these are refused.
var rdmDisabledActions = []string{
	"update",
	"create_files",
	"set_content_files",
	"commit_files",
	"update_files",
	"get_file_transfer_metadata",
	"update_file_transfer_metadata",
	"media_create_files",
	"media_set_content_files",
	"media_commit_files",
	"media_update_files",
	"media_delete_files",
	"query_stats",
}

// rdmGroups are the permission groups the record actions are built from.
type rdmGroups struct {
	manage        []Generator
	curate        []Generator
	review        []Generator
	preview       []Generator
	view          []Generator
	authenticated []Generator
	all           []Generator
}

func concat(lists ...[]Generator) []Generator {
	var out []Generator
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func gens(g ...Generator) []Generator { return g }

func baseRDMGroups() rdmGroups {
	var g rdmGroups
	g.manage = gens(RecordOwners{}, RecordCommunitiesAction{Action: "curate"}, AccessGrant{Permission: "manage"}, NewSystemProcess())
	g.derive()
	g.authenticated = gens(NewAuthenticatedUser(), NewSystemProcess())
	g.all = gens(NewAnyUser(), NewSystemProcess())
	return g
}

// derive fills curate, review, preview and view from manage.
func (g *rdmGroups) derive(viewExtra ...Generator) {
	g.curate = concat(g.manage, gens(AccessGrant{Permission: "edit"}, SecretLinks{Permission: "edit"}))
	g.review = concat(g.curate, gens(SubmissionReviewer{}))
	g.preview = concat(g.curate, gens(AccessGrant{Permission: "preview"}, SecretLinks{Permission: "preview"}, SubmissionReviewer{}, NewUserManager()))
	g.view = concat(g.preview, gens(
		AccessGrant{Permission: "view"},
		SecretLinks{Permission: "view"},
		SubmissionReviewer{},
		CommunityInclusionReviewers{},
		RecordCommunitiesAction{Action: "view"},
	), viewExtra)
}

type actionSpec struct {
	name string
	gens []Generator
}

// rdmRecordActions lists every enabled record action in terms of g.
func rdmRecordActions(g rdmGroups, cfg *Config) []actionSpec {
	flag := cfg.Flag
	read := gens(NewIfRestricted("record", g.view, g.all))
	readDeleted := gens(NewIfRecordDeleted(gens(NewUserManager(), NewSystemProcess()), read))
	readFiles := gens(NewIfRestricted("files", g.view, g.all), ResourceAccessToken{Permission: "read"})
	draftReadFiles := concat(g.preview, gens(ResourceAccessToken{Permission: "read"}))
	newOrReview := func(key string) []Generator {
		return gens(NewIfConfig(key, flag(key), gens(NewIfNewRecord(g.authenticated, g.review)), nil))
	}
	removeCommunity := gens(RecordOwners{}, CommunityCurators{}, NewSystemProcess())
	transfer := func(then []Generator, types ...string) []Generator {
		var out []Generator
		for _, t := range types {
			out = append(out, NewIfTransferType(t, then))
		}
		return append(out, NewSystemProcess())
	}

	return []actionSpec{
		{"manage_internal", gens(NewSystemProcess())},
		{"manage", g.manage},
		{"curate", g.curate},
		{"review", g.review},
		{"preview", g.preview},
		{"view", g.view},
		{"authenticated", g.authenticated},
		{"all", g.all},

		{"search", g.all},
		{"read", read},
		{"read_deleted", readDeleted},
		{"read_deleted_files", readDeleted},
		{"media_read_deleted_files", readDeleted},
		{"read_files", readFiles},
		{"get_content_files", transfer(readFiles, LocalTransferType)},
		{"create", g.authenticated},
		{"search_revisions", gens(NewAdministration())},

		{"search_drafts", g.authenticated},
		{"read_draft", g.preview},
		{"draft_read_files", draftReadFiles},
		{"update_draft", g.review},
		{"draft_create_files", g.review},
		{"draft_set_content_files", transfer(g.review, LocalTransferType, MultipartTransferType)},
		{"draft_get_content_files", transfer(draftReadFiles, LocalTransferType)},
		{"draft_commit_files", transfer(g.review, LocalTransferType, MultipartTransferType)},
		{"draft_update_files", g.review},
		{"draft_delete_files", g.review},
		{"draft_get_file_transfer_metadata", gens(NewSystemProcess())},
		{"draft_update_file_transfer_metadata", gens(NewSystemProcess())},
		{"manage_files", newOrReview("RDM_ALLOW_METADATA_ONLY_RECORDS")},
		{"manage_record_access", newOrReview("RDM_ALLOW_RESTRICTED_RECORDS")},

		{"pid_create", g.review},
		{"pid_register", g.review},
		{"pid_update", g.review},
		{"pid_discard", g.review},
		{"pid_delete", g.review},
		{"pid_manage", gens(NewSystemProcess())},

		{"edit", gens(NewIfDeleted(gens(Disable{}), g.curate))},
		{"delete_draft", g.curate},
		{"new_version", gens(NewIfConfig("RDM_ALLOW_EXTERNAL_DOI_VERSIONING", flag("RDM_ALLOW_EXTERNAL_DOI_VERSIONING"),
			g.curate,
			gens(NewIfExternalDOIRecord(gens(Disable{}), g.curate)),
		))},
		{"publish", gens(NewIfConfig("RDM_COMMUNITY_REQUIRED_TO_PUBLISH", flag("RDM_COMMUNITY_REQUIRED_TO_PUBLISH"),
			gens(NewIfAtLeastOneCommunity(g.review, gens(NewAdministration(), NewSystemProcess()))),
			g.review,
		))},
		{"lift_embargo", g.manage},

		{"add_community", g.manage},
		{"remove_community", gens(NewIfConfig("RDM_COMMUNITY_REQUIRED_TO_PUBLISH", flag("RDM_COMMUNITY_REQUIRED_TO_PUBLISH"),
			gens(NewIfOneCommunity(gens(NewAdministration(), NewSystemProcess()), removeCommunity)),
			removeCommunity,
		))},
		{"remove_record", gens(CommunityCurators{}, NewAdministration(), NewSystemProcess())},
		{"bulk_add", gens(NewSystemProcess())},

		{"draft_media_create_files", g.review},
		{"draft_media_read_files", g.review},
		{"draft_media_set_content_files", transfer(g.review, LocalTransferType)},
		{"draft_media_get_content_files", transfer(g.preview, LocalTransferType)},
		{"draft_media_commit_files", transfer(g.review, LocalTransferType)},
		{"draft_media_delete_files", g.review},
		{"draft_media_update_files", g.review},

		{"media_read_files", gens(NewIfRestricted("record", g.view, g.all), ResourceAccessToken{Permission: "read"})},
		{"media_get_content_files", transfer(read, LocalTransferType)},

		{"delete", gens(NewAdministration(), NewSystemProcess())},
		{"delete_files", gens(NewSystemProcess())},
		{"purge", gens(NewSystemProcess())},
		{"manage_quota", gens(NewUserManager(), NewSystemProcess())},
		{"moderate", gens(NewSystemProcess())},
	}
}

func buildRDMRecordPolicy(name string, base *PolicyTable, g rdmGroups, cfg *Config) *PolicyBuilder {
	b := NewPolicyBuilder(name).From(base)
	for _, a := range rdmRecordActions(g, cfg) {
		b.Set(a.name, a.gens...)
	}
	if base == nil {
		for _, a := range rdmDisabledActions {
			b.Disable(a)
		}
		for label, action := range NeedLabelToAction {
			b.NeedLabel(label, action)
		}
	}
	return b
}

// BaseRDMRecordPolicy is the generic record policy of the repository
// framework. cfg may be nil.
func BaseRDMRecordPolicy(cfg *Config) (*PolicyTable, error) {
	return buildRDMRecordPolicy("rdm-record", nil, baseRDMGroups(), cfg).Build()
}

type policyOptions struct {
	log      logger.Logger
	accounts AccountStore
}

type PolicyOption func(*policyOptions)

func WithPolicyLogger(l logger.Logger) PolicyOption {
	return func(o *policyOptions) { o.log = logger.OrNull(l) }
}

// WithCuratorAccounts enables the curator rule in the manage group. It only
// takes effect when curators are configured.
func WithCuratorAccounts(accounts AccountStore) PolicyOption {
	return func(o *policyOptions) { o.accounts = accounts }
}

// TUGrazRDMRecordPolicy derives the TU Graz record policy from the base
// policy: "authenticated" means holding the TU Graz role, and records
// flagged single_ip or ip_network are only visible from the configured
// addresses.
func TUGrazRDMRecordPolicy(cfg *Config, opts ...PolicyOption) (*PolicyTable, error) {
	o := policyOptions{log: logger.NewNullLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	base, err := BaseRDMRecordPolicy(cfg)
	if err != nil {
		return nil, err
	}

	singleIP := NewSingleIPRule(cfg.singleIPs(), o.log)
	ipNetwork := NewIPNetworkRule(cfg.ipNetwork(), o.log)

	var g rdmGroups
	g.manage = gens(RecordOwners{}, RecordCommunitiesAction{Action: "curate"}, AccessGrant{Permission: "manage"}, NewSystemProcess())
	if o.accounts != nil && len(cfg.curators()) > 0 {
		g.manage = append(g.manage, NewCuratorRule(cfg.curators(), o.accounts,
			WithCuratorLookupTimeout(cfg.curatorLookupTimeout()),
			WithCuratorLogger(o.log),
		))
	}
	ipGates := gens(
		NewIfIPNetworkRestricted(gens(ipNetwork), nil),
		NewIfSingleIPRestricted(gens(singleIP), nil),
	)
	g.derive(ipGates...)
	g.authenticated = gens(NewRoleRule(cfg.authenticatedRole()), NewSystemProcess())
	// flagged records admit a requester that passes either address gate,
	// and fall back to the owners and managers otherwise
	g.all = gens(
		NewIfIPRestricted(concat(ipGates, g.manage), gens(NewAnyUser())),
		NewSystemProcess(),
	)

	b := buildRDMRecordPolicy("tugraz-rdm-record", base, g, cfg)
	b.Set("tugraz_authenticated", g.authenticated...)
	return b.Build()
}
