package tugraz

import "context"

// conditional picks one of two generator lists per record. cond decides the
// branch; query, when non-nil, is the indexed form of cond so the filter can
// keep both branches apart.
type conditional struct {
	then  []Generator
	els   []Generator
	cond  func(rec *Record) bool
	query Query
}

func (c *conditional) branch(rec *Record) []Generator {
	if c.cond(rec) {
		return c.then
	}
	return c.els
}

func (c *conditional) Needs(ctx context.Context, rec *Record, id *Identity) []Need {
	var out []Need
	for _, g := range c.branch(rec) {
		out = append(out, g.Needs(ctx, rec, id)...)
	}
	return out
}

func (c *conditional) Excludes(ctx context.Context, rec *Record, id *Identity) []Need {
	var out []Need
	for _, g := range c.branch(rec) {
		out = append(out, g.Excludes(ctx, rec, id)...)
	}
	return out
}

func (c *conditional) QueryFilter(ctx context.Context, id *Identity) Query {
	thenQ := combineFilters(ctx, c.then, id)
	elseQ := combineFilters(ctx, c.els, id)
	if c.query == nil {
		// condition is not indexed, so either branch may apply
		return Or(thenQ, elseQ)
	}
	return Or(And(c.query, thenQ), And(Not(c.query), elseQ))
}

// combineFilters ORs the filters of gens.
func combineFilters(ctx context.Context, gens []Generator, id *Identity) Query {
	qs := make([]Query, 0, len(gens))
	for _, g := range gens {
		qs = append(qs, g.QueryFilter(ctx, id))
	}
	return Or(qs...)
}

// IfRestricted selects Then when the record's Field ("record" or "files")
// is restricted.
type IfRestricted struct{ conditional }

func NewIfRestricted(field string, then, els []Generator) *IfRestricted {
	return &IfRestricted{conditional{
		then: then,
		els:  els,
		cond: func(rec *Record) bool {
			if rec == nil {
				return false
			}
			if field == "files" {
				return rec.Access.Files == AccessRestricted
			}
			return rec.Access.Record == AccessRestricted
		},
		query: Term("access."+field, AccessRestricted),
	}}
}

// IfRecordDeleted selects Then for deleted records.
type IfRecordDeleted struct{ conditional }

func NewIfRecordDeleted(then, els []Generator) *IfRecordDeleted {
	return &IfRecordDeleted{conditional{
		then:  then,
		els:   els,
		cond:  func(rec *Record) bool { return rec != nil && rec.Deleted },
		query: Term("is_deleted", true),
	}}
}

// IfDeleted is the draft-side variant of IfRecordDeleted used by edit paths.
type IfDeleted struct{ conditional }

func NewIfDeleted(then, els []Generator) *IfDeleted {
	return &IfDeleted{conditional{
		then: then,
		els:  els,
		cond: func(rec *Record) bool { return rec != nil && rec.Deleted },
	}}
}

// IfNewRecord selects Then when there is no record yet or it was never
// published.
type IfNewRecord struct{ conditional }

func NewIfNewRecord(then, els []Generator) *IfNewRecord {
	return &IfNewRecord{conditional{
		then: then,
		els:  els,
		cond: func(rec *Record) bool { return rec == nil || !rec.IsPublished },
	}}
}

// IfConfig selects Then when the configuration flag was set at table
// construction time.
type IfConfig struct {
	conditional
	Key string
}

func NewIfConfig(key string, enabled bool, then, els []Generator) *IfConfig {
	q := MatchNone
	if enabled {
		q = MatchAll
	}
	return &IfConfig{
		conditional: conditional{
			then:  then,
			els:   els,
			cond:  func(*Record) bool { return enabled },
			query: q,
		},
		Key: key,
	}
}

// IfExternalDOIRecord selects Then for records whose DOI is managed outside
// the repository.
type IfExternalDOIRecord struct{ conditional }

func NewIfExternalDOIRecord(then, els []Generator) *IfExternalDOIRecord {
	return &IfExternalDOIRecord{conditional{
		then: then,
		els:  els,
		cond: func(rec *Record) bool {
			if rec == nil {
				return false
			}
			pid, ok := rec.PIDs["doi"]
			return ok && pid.Provider == "external"
		},
		query: Term("pids.doi.provider", "external"),
	}}
}

// IfAtLeastOneCommunity selects Then for records included in a community.
type IfAtLeastOneCommunity struct{ conditional }

func NewIfAtLeastOneCommunity(then, els []Generator) *IfAtLeastOneCommunity {
	return &IfAtLeastOneCommunity{conditional{
		then: then,
		els:  els,
		cond: func(rec *Record) bool { return rec != nil && len(rec.Parent.Communities.IDs) > 0 },
	}}
}

// IfOneCommunity selects Then for records included in exactly one
// community.
type IfOneCommunity struct{ conditional }

func NewIfOneCommunity(then, els []Generator) *IfOneCommunity {
	return &IfOneCommunity{conditional{
		then: then,
		els:  els,
		cond: func(rec *Record) bool { return rec != nil && len(rec.Parent.Communities.IDs) == 1 },
	}}
}

// IfTransferType selects Then when the file being acted on uses the given
// transfer type. There is no else branch.
type IfTransferType struct {
	conditional
	TransferType string
}

func NewIfTransferType(transferType string, then []Generator) *IfTransferType {
	return &IfTransferType{
		conditional: conditional{
			then: then,
			cond: func(rec *Record) bool { return rec != nil && rec.TransferType == transferType },
		},
		TransferType: transferType,
	}
}
