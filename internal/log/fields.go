package log

// Attribute keys shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldReferer    = "referer"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
)

// Recurring transaction keys.
const (
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldTemplateID = "template_id"
	FieldInstanceID = "instance_id"
	FieldProjectID  = "project_id"
	FieldSheetsRef  = "sheets_ref"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentWorker    = "worker"
	ComponentProcessor = "processor"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpGenerate = "generate"
	OpSync     = "sync"
	OpShutdown = "shutdown"
)

// LogFields accumulates key/value pairs in insertion order, ready to be
// passed to slog as args.
type LogFields []any

func NewFields() LogFields { return make(LogFields, 0, 16) }

func (f LogFields) add(kv ...any) LogFields { return append(f, kv...) }

func (f LogFields) WithClientIP(ip string) LogFields { return f.add(FieldClientIP, ip) }

func (f LogFields) WithOperation(op string) LogFields { return f.add(FieldOperation, op) }

// WithError is a no-op for a nil error.
func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	return f.add(FieldError, err.Error())
}

func (f LogFields) WithInstance(instanceID, templateID int64, year, month int) LogFields {
	return f.add(FieldInstanceID, instanceID, FieldTemplateID, templateID, FieldYear, year, FieldMonth, month)
}

// WithHTTPRequest skips empty user agent and referer values.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f = f.add(FieldMethod, method, FieldPath, path, FieldQuery, query)
	if userAgent != "" {
		f = f.add(FieldUserAgent, userAgent)
	}
	if referer != "" {
		f = f.add(FieldReferer, referer)
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	return f.add(FieldStatusCode, statusCode, FieldDuration, durationMs, FieldSuccess, success)
}

func (f LogFields) ToSlice() []any { return []any(f) }
