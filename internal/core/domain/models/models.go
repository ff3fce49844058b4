package models

// BatchStatus is the processing state of an uploaded batch.
type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchProcessed  BatchStatus = "processed"
	BatchError      BatchStatus = "error"
)

// Terminal reports whether no further transitions are possible from s.
func (s BatchStatus) Terminal() bool {
	return s == BatchProcessed || s == BatchError
}

// DocumentBatch is one uploaded scan as returned by the API.
type DocumentBatch struct {
	ID               int64         `json:"id" yaml:"id"`
	Name             string        `json:"name" yaml:"name"`
	UploadedByUserID int64         `json:"uploaded_by_user_id,omitempty" yaml:"uploaded_by_user_id,omitempty"`
	UploadedBy       string        `json:"uploaded_by,omitempty" yaml:"uploaded_by,omitempty"`
	UploadTime       Timestamp     `json:"upload_time" yaml:"upload_time"`
	TotalPages       int           `json:"total_pages" yaml:"total_pages"`
	DealsDetected    int           `json:"deals_detected" yaml:"deals_detected"`
	Status           BatchStatus   `json:"status" yaml:"status"`
	ProcessProgress  int           `json:"process_progress" yaml:"process_progress"`
	PageMap          []PageMapItem `json:"page_map,omitempty" yaml:"page_map,omitempty"`
	FilePath         string        `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	FileSize         int64         `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	MimeType         string        `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	CreatedAt        Timestamp     `json:"created_at" yaml:"created_at"`
	UpdatedAt        *Timestamp    `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// DocumentBatchUpdate is a partial update; nil fields are left untouched.
type DocumentBatchUpdate struct {
	Name            *string       `json:"name,omitempty"`
	TotalPages      *int          `json:"total_pages,omitempty"`
	DealsDetected   *int          `json:"deals_detected,omitempty"`
	Status          *BatchStatus  `json:"status,omitempty"`
	ProcessProgress *int          `json:"process_progress,omitempty"`
	PageMap         []PageMapItem `json:"page_map,omitempty"`
}

// DealStatus is the reconciliation outcome of a deal.
type DealStatus string

const (
	DealMatched   DealStatus = "matched"
	DealMismatch  DealStatus = "mismatch"
	DealReview    DealStatus = "review"
	DealProcessed DealStatus = "processed"
	DealPending   DealStatus = "pending"
)

// SignatureStatus is the verification state of a signature.
type SignatureStatus string

const (
	SignatureValid   SignatureStatus = "valid"
	SignatureReview  SignatureStatus = "review"
	SignatureInvalid SignatureStatus = "invalid"
)

type Signature struct {
	Status SignatureStatus `json:"status" yaml:"status"`
	Name   string          `json:"name" yaml:"name"`
}

type Signatures struct {
	Teller     Signature `json:"teller" yaml:"teller"`
	Supervisor Signature `json:"supervisor" yaml:"supervisor"`
}

// Deal is one transaction extracted from a contiguous page range of a batch.
type Deal struct {
	ID              int64          `json:"id" yaml:"id"`
	DealID          string         `json:"deal_id,omitempty" yaml:"deal_id,omitempty"`
	BatchID         int64          `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	StartPage       int            `json:"start_page,omitempty" yaml:"start_page,omitempty"`
	EndPage         int            `json:"end_page,omitempty" yaml:"end_page,omitempty"`
	TotalPages      int            `json:"total_pages,omitempty" yaml:"total_pages,omitempty"`
	Pages           string         `json:"pages,omitempty" yaml:"pages,omitempty"`
	SourceFile      string         `json:"source_file,omitempty" yaml:"source_file,omitempty"`
	Type            string         `json:"type,omitempty" yaml:"type,omitempty"`
	User            string         `json:"user,omitempty" yaml:"user,omitempty"`
	Customer        string         `json:"customer,omitempty" yaml:"customer,omitempty"`
	CustomerName    string         `json:"customer_name,omitempty" yaml:"customer_name,omitempty"`
	DealType        string         `json:"deal_type,omitempty" yaml:"deal_type,omitempty"`
	AmountSystem    float64        `json:"amount_system" yaml:"amount_system"`
	AmountExtract   float64        `json:"amount_extract" yaml:"amount_extract"`
	Currency        string         `json:"currency" yaml:"currency"`
	Status          DealStatus     `json:"status" yaml:"status"`
	Score           float64        `json:"score" yaml:"score"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty" yaml:"confidence_score,omitempty"`
	Timestamp       string         `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Signatures      Signatures     `json:"signatures" yaml:"signatures"`
	ExtractedData   map[string]any `json:"extracted_data,omitempty" yaml:"extracted_data,omitempty"`
}

// DealPart selects which PDF of a deal to download.
type DealPart string

const (
	DealPartFull          DealPart = "full"
	DealPartSpendingUnit  DealPart = "spending-unit"
	DealPartReceivingUnit DealPart = "receiving-unit"
)

// UserRole is the authorization role of an operator account.
type UserRole string

const (
	RoleAdmin UserRole = "Admin"
	RoleUser  UserRole = "User"
)

// UserStatus is the activation state of an operator account.
type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

type User struct {
	ID        int64      `json:"id" yaml:"id"`
	Username  string     `json:"username" yaml:"username"`
	Email     string     `json:"email" yaml:"email"`
	FirstName string     `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	FullName  string     `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	JobTitle  string     `json:"job_title,omitempty" yaml:"job_title,omitempty"`
	Role      UserRole   `json:"role" yaml:"role"`
	Status    UserStatus `json:"status" yaml:"status"`
	CreatedAt Timestamp  `json:"created_at" yaml:"created_at"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

type UserCreateRequest struct {
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Password  string     `json:"password,omitempty"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	JobTitle  string     `json:"job_title,omitempty"`
	Role      UserRole   `json:"role,omitempty"`
	Status    UserStatus `json:"status,omitempty"`
}

type UserUpdateRequest struct {
	Username  *string     `json:"username,omitempty"`
	Email     *string     `json:"email,omitempty"`
	FirstName *string     `json:"first_name,omitempty"`
	LastName  *string     `json:"last_name,omitempty"`
	JobTitle  *string     `json:"job_title,omitempty"`
	Role      *UserRole   `json:"role,omitempty"`
	Status    *UserStatus `json:"status,omitempty"`
}

// UserQuery filters the user listing. Zero values are omitted from the query string.
type UserQuery struct {
	Skip       int
	Limit      int
	SearchTerm string
	Status     UserStatus
	Role       UserRole
	SortBy     string
	SortOrder  string
}

// Page bounds a listing request.
type Page struct {
	Skip  int
	Limit int
}
