package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/diff"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/images"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/mapping"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/models"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/domain/ports"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/metrics"
	"github.com/athebyme/gomarket-platform/catalog-sync/internal/utils"
	"github.com/athebyme/gomarket-platform/catalog-sync/pkg/interfaces"
)

// Options параметры синхронизации
type Options struct {
	// Mapping используется, когда вызывающий не передал свой маппинг
	Mapping      *mapping.Mapping
	Languages    []string
	BaseLanguage string
	// ListDelay пауза между запросами списков и деталей при сравнении,
	// ItemDelay пауза между записями в пакетных операциях
	ListDelay time.Duration
	ItemDelay time.Duration
}

// Dependencies зависимости оркестратора
type Dependencies struct {
	Catalog    ports.CatalogPort
	Directory  ports.DirectoryRepository
	Lookup     *LookupService
	Audit      *AuditService
	Exclusions *ExclusionService
	Images     *images.Reconciler
	Diff       *diff.Engine
	Locker     ports.Locker
	// Events может быть nil
	Events ports.EventPublisher
	Logger interfaces.LoggerPort
}

// Orchestrator машина состояний синхронизации одного SKU:
// разрешение, создание или обновление, изображения, аудит
type Orchestrator struct {
	catalog    ports.CatalogPort
	directory  ports.DirectoryRepository
	lookup     *LookupService
	audit      *AuditService
	exclusions *ExclusionService
	images     *images.Reconciler
	diff       *diff.Engine
	locker     ports.Locker
	events     ports.EventPublisher
	logger     interfaces.LoggerPort
	opts       Options
}

// NewOrchestrator создает оркестратор
func NewOrchestrator(deps Dependencies, opts Options) *Orchestrator {
	if opts.BaseLanguage == "" {
		opts.BaseLanguage = models.DefaultLanguage
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{opts.BaseLanguage}
	}
	if deps.Diff == nil {
		deps.Diff = diff.NewEngine()
	}
	if deps.Locker == nil {
		deps.Locker = NewKeyedLocker()
	}
	return &Orchestrator{
		catalog:    deps.Catalog,
		directory:  deps.Directory,
		lookup:     deps.Lookup,
		audit:      deps.Audit,
		exclusions: deps.Exclusions,
		images:     deps.Images,
		diff:       deps.Diff,
		locker:     deps.Locker,
		events:     deps.Events,
		logger:     deps.Logger,
		opts:       opts,
	}
}

// Mapping маппинг по умолчанию
func (o *Orchestrator) Mapping() *mapping.Mapping {
	return o.opts.Mapping
}

// ConflictError SKU уже существует в удаленном каталоге
type ConflictError struct {
	SKU       string
	ProductID int64
	VariantID *int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sku %s already exists in remote catalog (product %d)", e.SKU, e.ProductID)
}

func (e *ConflictError) Unwrap() error {
	return utils.ErrConflict
}

func conflictFrom(sku string, r *models.Resolution) *ConflictError {
	return &ConflictError{SKU: sku, ProductID: r.ProductID, VariantID: r.VariantID}
}

// opState учитывает удаленные изменения одной операции верхнего уровня
type opState struct {
	sku       string
	op        string
	attempted int
	failures  []error
}

// mutation отмечает попытку удаленного изменения
func (s *opState) mutation(err error) error {
	s.attempted++
	if err != nil {
		s.failures = append(s.failures, err)
	}
	return err
}

type opFunc func(ctx context.Context, st *opState) *models.SyncResult

// execute выполняет операцию над SKU под блокировкой, внутри прогона импорта,
// и пишет один элемент аудита, если была хотя бы одна попытка изменения
func (o *Orchestrator) execute(ctx context.Context, sku, op, triggeredBy string, fn opFunc) *models.SyncResult {
	if sku == "" {
		res := (&models.SyncResult{}).Fail(models.StatusFailed, fmt.Errorf("%w: sku", utils.ErrValidationMissing))
		metrics.SyncOutcomes.WithLabelValues(op, res.Status).Inc()
		return res
	}
	ctx = withSKU(ctx, sku)

	unlock, err := o.locker.Lock(ctx, sku)
	if err != nil {
		res := (&models.SyncResult{SKU: sku}).Fail(models.StatusFailed, err)
		metrics.SyncOutcomes.WithLabelValues(op, res.Status).Inc()
		return res
	}
	defer unlock()

	ctx, finish := o.ensureRun(ctx, triggeredBy)
	defer finish()

	st := &opState{sku: sku, op: op}
	res := fn(ctx, st)
	res.SKU = sku
	settle(res, st)
	o.record(ctx, st, res)

	metrics.SyncOutcomes.WithLabelValues(st.op, res.Status).Inc()
	if res.Err() != nil {
		o.logger.ErrorWithContext(ctx, "Операция синхронизации завершилась ошибкой",
			interfaces.LogField{Key: "op", Value: st.op},
			interfaces.LogField{Key: "status", Value: res.Status},
			interfaces.LogField{Key: "error", Value: res.Error},
		)
	} else {
		o.logger.InfoWithContext(ctx, "Операция синхронизации завершена",
			interfaces.LogField{Key: "op", Value: st.op},
			interfaces.LogField{Key: "status", Value: res.Status},
			interfaces.LogField{Key: "mutations", Value: st.attempted},
		)
	}
	o.publish(ctx, st.op, res)
	return res
}

// ensureRun использует прогон из контекста или открывает собственный
func (o *Orchestrator) ensureRun(ctx context.Context, triggeredBy string) (context.Context, func()) {
	if _, ok := RunFromContext(ctx); ok {
		return ctx, func() {}
	}
	run, err := o.audit.Start(ctx, triggeredBy)
	if err != nil {
		o.logger.ErrorWithContext(ctx, "Не удалось открыть прогон импорта",
			interfaces.LogField{Key: "error", Value: err.Error()})
		return ctx, func() {}
	}
	runCtx := WithRun(ctx, run.ID)
	return runCtx, func() {
		if _, err := o.audit.Finish(context.WithoutCancel(runCtx), run.ID); err != nil {
			o.logger.ErrorWithContext(runCtx, "Не удалось завершить прогон импорта",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
}

// settle переводит частичные ошибки независимых изменений в статус результата
func settle(res *models.SyncResult, st *opState) {
	if res.Err() != nil || len(st.failures) == 0 {
		return
	}
	joined := errors.Join(st.failures...)
	res.Details = details(st.failures...)
	if st.attempted > len(st.failures) {
		res.Fail(models.StatusPartialFailure, fmt.Errorf("%w: %w", utils.ErrPartialApply, joined))
		return
	}
	res.Fail(models.StatusFailed, joined)
}

func (o *Orchestrator) record(ctx context.Context, st *opState, res *models.SyncResult) {
	if st.attempted == 0 || errors.Is(res.Err(), utils.ErrConflict) {
		return
	}
	runID, ok := RunFromContext(ctx)
	if !ok {
		return
	}
	status, message := models.ItemOK, ""
	if res.Err() != nil {
		status, message = models.ItemFail, res.Error
	}
	if _, err := o.audit.AppendItem(context.WithoutCancel(ctx), runID, st.sku, st.op, status, message); err != nil {
		o.logger.ErrorWithContext(ctx, "Не удалось записать элемент прогона",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

func (o *Orchestrator) publish(ctx context.Context, op string, res *models.SyncResult) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishSyncResult(context.WithoutCancel(ctx), op, res); err != nil {
		o.logger.WarnWithContext(ctx, "Не удалось опубликовать событие синхронизации",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

type responseBodyError interface {
	ResponseBody() string
}

// details тело ответа удаленного API из первой ошибки, где оно есть
func details(errs ...error) string {
	for _, err := range errs {
		var rb responseBodyError
		if errors.As(err, &rb) {
			return rb.ResponseBody()
		}
	}
	return ""
}

// failResult заполняет результат по фатальной ошибке операции
func failResult(res *models.SyncResult, err error) *models.SyncResult {
	var ce *ConflictError
	if errors.As(err, &ce) {
		res.ProductID = &ce.ProductID
		res.VariantID = ce.VariantID
		return res.Fail(models.StatusConflict, err)
	}
	res.Details = details(err)
	return res.Fail(models.StatusFailed, err)
}

func (o *Orchestrator) mappingOrDefault(m *mapping.Mapping) (*mapping.Mapping, error) {
	if m == nil || len(m.Entries) == 0 {
		m = o.opts.Mapping
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// languages настроенные локали и локали из маппинга; базовая первой
func (o *Orchestrator) languages(m *mapping.Mapping) []string {
	seen := map[string]bool{o.opts.BaseLanguage: true}
	out := []string{o.opts.BaseLanguage}
	for _, lang := range o.opts.Languages {
		if !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	var extra []string
	if m != nil {
		for lang := range m.Languages() {
			if !seen[lang] {
				extra = append(extra, lang)
			}
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func failedBeforeStart(sku string, err error) *models.SyncResult {
	return (&models.SyncResult{SKU: sku}).Fail(models.StatusFailed, err)
}
