// Package importer applies a confirmed mapping to an uploaded table and
// writes the resulting assets or users through the repositories.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/assetdock/assetdock/internal/mapping"
	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/repository"
	"github.com/assetdock/assetdock/internal/tabular"
)

// AssetStore is the asset persistence the executor needs.
type AssetStore interface {
	FindBySerial(ctx context.Context, serial string) (*model.Asset, error)
	FindBySerialInSet(ctx context.Context, serial, setID string) (*model.Asset, error)
	Create(ctx context.Context, asset *model.Asset) error
	Update(ctx context.Context, asset *model.Asset) error
}

// UserStore is the user persistence the executor needs.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
}

// SetStore is the asset set persistence the executor needs.
type SetStore interface {
	Create(ctx context.Context, set *model.AssetSet) error
	Get(ctx context.Context, id string) (*model.AssetSet, error)
}

// FieldStore is the custom field persistence the executor needs.
type FieldStore interface {
	Keys(ctx context.Context, target string) ([]string, error)
	Ensure(ctx context.Context, def *model.CustomFieldDefinition) error
}

// Executor runs one confirmed import end to end.
type Executor struct {
	assets AssetStore
	users  UserStore
	sets   SetStore
	fields FieldStore
	logger *slog.Logger
}

// New constructs an Executor.
func New(assets AssetStore, users UserStore, sets SetStore, fields FieldStore, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{assets: assets, users: users, sets: sets, fields: fields, logger: logger}
}

// ValidateStrategy checks the strategy and its required options. It is
// used both at execute time and up front by the API so a bad request
// never reaches the queue.
func ValidateStrategy(kind model.EntityKind, strategy model.Strategy, opts model.ImportOptions) error {
	switch strategy {
	case model.StrategyMerge:
		return nil
	case model.StrategyNewSet:
		if kind == model.KindUser {
			return errors.New("NEW_SET is only valid for asset imports")
		}
		if strings.TrimSpace(opts.NewSetName) == "" {
			return errors.New("newSetName is required for NEW_SET")
		}
		return nil
	case model.StrategyExistingSet:
		if opts.SetID == "" {
			return errors.New("setId is required for EXISTING_SET")
		}
		return nil
	default:
		return fmt.Errorf("unknown strategy %q", strategy)
	}
}

// ValidateMapping checks that every mapping value is either empty (ignore)
// or a field key valid for the kind, including custom field keys.
func ValidateMapping(kind model.EntityKind, m map[string]string, extraKeys []string) error {
	valid := make(map[string]struct{})
	for _, k := range mapping.FieldKeys(kind) {
		valid[k] = struct{}{}
	}
	for _, k := range extraKeys {
		valid[k] = struct{}{}
	}
	for header, target := range m {
		if target == "" {
			continue
		}
		if _, ok := valid[target]; !ok {
			return fmt.Errorf("header %q maps to unknown field %q", header, target)
		}
	}
	return nil
}

// Run executes the import. Row-level problems are collected into the
// result's Errors slice; only environment failures (set resolution,
// unreachable stores) return an error and fail the job.
func (e *Executor) Run(ctx context.Context, table *tabular.Table, kind model.EntityKind, strategy model.Strategy, opts model.ImportOptions) (*model.JobResult, error) {
	if err := ValidateStrategy(kind, strategy, opts); err != nil {
		return nil, err
	}

	setID, err := e.resolveSet(ctx, strategy, opts)
	if err != nil {
		return nil, err
	}

	var result *model.JobResult
	switch kind {
	case model.KindUser:
		result, err = e.runUsers(ctx, table, strategy, opts, setID)
	default:
		result, err = e.runAssets(ctx, table, strategy, opts, setID)
	}
	if err != nil {
		return nil, err
	}
	result.SetID = setID
	return result, nil
}

// resolveSet creates or verifies the target set. MERGE runs in the global
// scope and returns an empty id.
func (e *Executor) resolveSet(ctx context.Context, strategy model.Strategy, opts model.ImportOptions) (string, error) {
	switch strategy {
	case model.StrategyNewSet:
		set := &model.AssetSet{
			ID:   uuid.NewString(),
			Name: strings.TrimSpace(opts.NewSetName),
		}
		if err := e.sets.Create(ctx, set); err != nil {
			return "", fmt.Errorf("create set: %w", err)
		}
		return set.ID, nil
	case model.StrategyExistingSet:
		set, err := e.sets.Get(ctx, opts.SetID)
		if err != nil {
			return "", fmt.Errorf("resolve set %s: %w", opts.SetID, err)
		}
		return set.ID, nil
	default:
		return "", nil
	}
}

// columnPlan is the per-header decision made once before iterating rows.
type columnPlan struct {
	header   string
	target   string // field key, or "" to drop the column
	extra    bool   // value lands in Extra under extraKey
	extraKey string
}

// normalizeMapping rekeys the submitted mapping by normalized header so it
// lines up with the normalization applied to file headers. Empty values
// survive: they mean "ignore this column".
func normalizeMapping(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for header, target := range m {
		out[mapping.NormalizeHeader(header)] = target
	}
	return out
}

// planColumns decides a target per header: the explicit mapping wins, then
// the header fallback table, then the column becomes extra metadata. When
// createMissing is set, metadata columns get a custom field definition.
func (e *Executor) planColumns(ctx context.Context, headers []string, opts model.ImportOptions, kind model.EntityKind, setID string) ([]columnPlan, error) {
	explicit := normalizeMapping(opts.Mapping)
	fallbacks := assetHeaderFallbacks
	builtin := make(map[string]struct{})
	for _, k := range mapping.FieldKeys(kind) {
		builtin[k] = struct{}{}
	}
	if kind == model.KindUser {
		fallbacks = userHeaderFallbacks
	}

	customKeys := make(map[string]struct{})
	if e.fields != nil {
		keys, err := e.fields.Keys(ctx, string(kind))
		if err != nil {
			return nil, fmt.Errorf("load custom fields: %w", err)
		}
		for _, k := range keys {
			customKeys[k] = struct{}{}
		}
	}

	var plans []columnPlan
	for _, header := range headers {
		norm := mapping.NormalizeHeader(header)
		plan := columnPlan{header: header}

		target, mapped := explicit[norm]
		if !mapped {
			if fb, ok := fallbacks[norm]; ok {
				target = fb
			} else if _, ok := customKeys[norm]; ok {
				target = norm
			}
		}

		switch {
		case mapped && target == "":
			// explicit ignore, drop the column
		case target == "":
			// unmapped metadata column
			plan.extra = true
			plan.extraKey = header
			if opts.CreateMissingFields && e.fields != nil {
				def := &model.CustomFieldDefinition{
					ID:        uuid.NewString(),
					Target:    string(kind),
					Key:       norm,
					Label:     header,
					FieldType: "string",
				}
				if setID != "" {
					def.SetID = &setID
				}
				if err := e.fields.Ensure(ctx, def); err != nil {
					return nil, fmt.Errorf("ensure custom field %s: %w", norm, err)
				}
				plan.extraKey = norm
			}
		case isBuiltin(builtin, target):
			plan.target = target
		default:
			// mapped to a custom field key
			plan.extra = true
			plan.extraKey = target
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func isBuiltin(builtin map[string]struct{}, key string) bool {
	_, ok := builtin[key]
	return ok
}

func (e *Executor) runAssets(ctx context.Context, table *tabular.Table, strategy model.Strategy, opts model.ImportOptions, setID string) (*model.JobResult, error) {
	plans, err := e.planColumns(ctx, table.Headers, opts, model.KindAsset, setID)
	if err != nil {
		return nil, err
	}

	result := &model.JobResult{}
	for i, row := range table.Rows {
		rowNum := i + 1
		asset, err := e.buildAsset(ctx, row, plans, setID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		if err := e.upsertAsset(ctx, asset, strategy, setID, rowNum); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (e *Executor) buildAsset(ctx context.Context, row map[string]string, plans []columnPlan, setID string) (*model.Asset, error) {
	asset := &model.Asset{ID: uuid.NewString()}
	if setID != "" {
		asset.SetID = &setID
	}

	for _, plan := range plans {
		value := strings.TrimSpace(row[plan.header])
		if value == "" {
			continue
		}
		if plan.extra {
			if asset.Extra == nil {
				asset.Extra = make(map[string]any)
			}
			asset.Extra[plan.extraKey] = value
			continue
		}
		switch plan.target {
		case "name":
			asset.Name = value
		case "serial_number":
			serial := value
			asset.SerialNumber = &serial
		case "status":
			asset.Status = CanonicalStatus(value)
		case "location":
			asset.Location = value
		case "asset_type":
			asset.AssetType = value
		case "vendor":
			asset.Vendor = value
		case "order_number":
			asset.OrderNumber = value
		case "purchase_date":
			if t, ok := ParseDate(value); ok {
				asset.PurchaseDate = &t
			}
		case "warranty_end":
			if t, ok := ParseDate(value); ok {
				asset.WarrantyEnd = &t
			}
		case "purchase_price":
			if p, ok := ParsePrice(value); ok {
				asset.PurchasePrice = &p
			}
		case "tags":
			asset.Tags = SplitTags(value)
		case "assigned_user":
			id, err := e.resolveUser(ctx, value)
			if err != nil {
				return nil, err
			}
			if id != "" {
				asset.AssignedUserID = &id
			}
		}
	}

	if asset.Name == "" {
		asset.Name = fallbackName(row)
	}
	return asset, nil
}

// fallbackName picks the asset name from the usual columns when nothing
// maps to "name". It returns "" when the file carries no name at all; the
// create path invents one, the merge path keeps the existing name.
func fallbackName(row map[string]string) string {
	byNorm := make(map[string]string, len(row))
	for header, value := range row {
		byNorm[mapping.NormalizeHeader(header)] = strings.TrimSpace(value)
	}
	for _, key := range nameHeaderFallbacks {
		if v := byNorm[key]; v != "" {
			return v
		}
	}
	return ""
}

// resolveUser turns an assigned-user cell (UUID or email) into a user id.
// An unknown reference leaves the asset unassigned rather than failing the
// row.
func (e *Executor) resolveUser(ctx context.Context, value string) (string, error) {
	if e.users == nil {
		return "", nil
	}
	var (
		user *model.User
		err  error
	)
	if isUUID(value) {
		user, err = e.users.FindByID(ctx, value)
	} else if strings.Contains(value, "@") {
		user, err = e.users.FindByEmail(ctx, value)
	} else {
		return "", nil
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			e.logger.Debug("assigned user not found", "ref", value)
			return "", nil
		}
		return "", fmt.Errorf("look up assigned user: %w", err)
	}
	return user.ID, nil
}

// upsertAsset writes the asset according to the strategy. MERGE and
// EXISTING_SET update an existing asset matched by serial number (globally
// or within the set); NEW_SET always creates. Rows the file never named
// get an invented name on create only.
func (e *Executor) upsertAsset(ctx context.Context, asset *model.Asset, strategy model.Strategy, setID string, rowNum int) error {
	if strategy != model.StrategyNewSet && asset.SerialNumber != nil {
		var (
			existing *model.Asset
			err      error
		)
		if strategy == model.StrategyExistingSet {
			existing, err = e.assets.FindBySerialInSet(ctx, *asset.SerialNumber, setID)
		} else {
			existing, err = e.assets.FindBySerial(ctx, *asset.SerialNumber)
		}
		switch {
		case err == nil:
			mergeAsset(existing, asset)
			return e.assets.Update(ctx, existing)
		case errors.Is(err, repository.ErrNotFound):
			// fall through to create
		default:
			return err
		}
	}
	if asset.Name == "" {
		asset.Name = fmt.Sprintf("Imported Asset %d", rowNum)
	}
	return e.assets.Create(ctx, asset)
}

// mergeAsset copies the non-empty incoming values over the existing asset.
func mergeAsset(existing, incoming *model.Asset) {
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.Status != "" {
		existing.Status = incoming.Status
	}
	if incoming.Location != "" {
		existing.Location = incoming.Location
	}
	if incoming.AssetType != "" {
		existing.AssetType = incoming.AssetType
	}
	if incoming.Vendor != "" {
		existing.Vendor = incoming.Vendor
	}
	if incoming.OrderNumber != "" {
		existing.OrderNumber = incoming.OrderNumber
	}
	if incoming.PurchaseDate != nil {
		existing.PurchaseDate = incoming.PurchaseDate
	}
	if incoming.PurchasePrice != nil {
		existing.PurchasePrice = incoming.PurchasePrice
	}
	if incoming.WarrantyEnd != nil {
		existing.WarrantyEnd = incoming.WarrantyEnd
	}
	if incoming.AssignedUserID != nil {
		existing.AssignedUserID = incoming.AssignedUserID
	}
	if len(incoming.Tags) > 0 {
		existing.Tags = incoming.Tags
	}
	if incoming.SetID != nil {
		existing.SetID = incoming.SetID
	}
	if len(incoming.Extra) > 0 {
		if existing.Extra == nil {
			existing.Extra = make(map[string]any, len(incoming.Extra))
		}
		for k, v := range incoming.Extra {
			existing.Extra[k] = v
		}
	}
}

func (e *Executor) runUsers(ctx context.Context, table *tabular.Table, strategy model.Strategy, opts model.ImportOptions, setID string) (*model.JobResult, error) {
	plans, err := e.planColumns(ctx, table.Headers, opts, model.KindUser, setID)
	if err != nil {
		return nil, err
	}

	result := &model.JobResult{}
	for i, row := range table.Rows {
		rowNum := i + 1
		if err := e.importUser(ctx, row, plans, setID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (e *Executor) importUser(ctx context.Context, row map[string]string, plans []columnPlan, setID string) error {
	incoming := &model.User{Role: "user", Active: true}
	activeSet := false

	for _, plan := range plans {
		value := strings.TrimSpace(row[plan.header])
		if value == "" {
			continue
		}
		if plan.extra {
			if incoming.Extra == nil {
				incoming.Extra = make(map[string]any)
			}
			incoming.Extra[plan.extraKey] = value
			continue
		}
		switch plan.target {
		case "email":
			incoming.Email = value
		case "full_name":
			incoming.FullName = value
		case "role":
			incoming.Role = value
		case "is_active":
			if v, ok := ParseActive(value); ok {
				incoming.Active = v
				activeSet = true
			}
		}
	}

	if incoming.Email == "" {
		return errors.New("email is required")
	}
	if setID != "" {
		incoming.SetID = &setID
	}

	existing, err := e.users.FindByEmail(ctx, incoming.Email)
	switch {
	case err == nil:
		if incoming.FullName != "" {
			existing.FullName = incoming.FullName
		}
		if incoming.Role != "" {
			existing.Role = incoming.Role
		}
		if activeSet {
			existing.Active = incoming.Active
		}
		if incoming.SetID != nil {
			existing.SetID = incoming.SetID
		}
		if len(incoming.Extra) > 0 {
			if existing.Extra == nil {
				existing.Extra = make(map[string]any, len(incoming.Extra))
			}
			for k, v := range incoming.Extra {
				existing.Extra[k] = v
			}
		}
		return e.users.Update(ctx, existing)
	case errors.Is(err, repository.ErrNotFound):
		incoming.ID = uuid.NewString()
		return e.users.Create(ctx, incoming)
	default:
		return err
	}
}
