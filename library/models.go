package library

// Book is a catalogue title. Authors and categories attach through link rows.
type Book struct {
	ID            int64  `json:"book_id"`
	ISBN          string `json:"isbn" validate:"required,max=32"`
	Title         string `json:"title" validate:"required,max=512"`
	Publisher     string `json:"publisher,omitempty"`
	PublishedYear int    `json:"published_year,omitempty" validate:"gte=0,lte=9999"`
	Description   string `json:"description,omitempty"`
}

// BookCopy is one circulating instance of a Book. Availability is tracked
// per copy, never per title.
type BookCopy struct {
	ID         int64      `json:"copy_id"`
	BookID     int64      `json:"book_id" validate:"required"`
	Barcode    string     `json:"barcode"`
	Status     CopyStatus `json:"status"`
	AcquiredOn *Date      `json:"acquired_on,omitempty"`
}

// Author of one or more books.
type Author struct {
	ID       int64  `json:"author_id"`
	FullName string `json:"full_name" validate:"required,max=256"`
}

// Category groups books, e.g. "Fiction".
type Category struct {
	ID   int64  `json:"category_id"`
	Name string `json:"name" validate:"required,max=128"`
}

// Member is a library patron who can borrow copies.
type Member struct {
	ID       int64        `json:"member_id"`
	Name     string       `json:"name" validate:"required,max=256"`
	Email    string       `json:"email" validate:"required,email"`
	Phone    string       `json:"phone,omitempty"`
	Status   MemberStatus `json:"status"`
	JoinDate Date         `json:"join_date"`
}

// Loan records one copy lent to one member by one librarian.
// ReturnDate is set if and only if Status is LoanReturned.
type Loan struct {
	ID          int64      `json:"loan_id"`
	MemberID    int64      `json:"member_id"`
	CopyID      int64      `json:"copy_id"`
	LibrarianID int64      `json:"librarian_id"`
	IssueDate   Date       `json:"issue_date"`
	DueDate     Date       `json:"due_date"`
	ReturnDate  *Date      `json:"return_date,omitempty"`
	Status      LoanStatus `json:"status"`
}

// Reservation is a hold on a title, independent of any specific copy.
type Reservation struct {
	ID        int64 `json:"reservation_id"`
	MemberID  int64 `json:"member_id"`
	BookID    int64 `json:"book_id"`
	CreatedAt Date  `json:"created_at"`
	ExpiresAt Date  `json:"expires_at"`
	Active    bool  `json:"active"`
}

// User is an authenticated principal.
type User struct {
	ID           int64  `json:"user_id"`
	Name         string `json:"name" validate:"required,max=256"`
	Email        string `json:"email" validate:"required,email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role" validate:"required,oneof=member librarian administrator"`
}

// Librarian links a User to the employee id recorded on the loans they issue.
type Librarian struct {
	EmployeeID int64 `json:"employee_id"`
	UserID     int64 `json:"user_id"`
}

// BookRecord is a Book enriched with resolved author and category names.
type BookRecord struct {
	Book
	Authors    []string `json:"authors"`
	Categories []string `json:"categories"`
}

// BookUpdate carries a partial update; nil fields are left unchanged.
type BookUpdate struct {
	ISBN          *string `json:"isbn,omitempty"`
	Title         *string `json:"title,omitempty"`
	Publisher     *string `json:"publisher,omitempty"`
	PublishedYear *int    `json:"published_year,omitempty"`
	Description   *string `json:"description,omitempty"`
}

// MemberUpdate carries a partial update; nil fields are left unchanged.
type MemberUpdate struct {
	Name   *string       `json:"name,omitempty"`
	Email  *string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone  *string       `json:"phone,omitempty"`
	Status *MemberStatus `json:"status,omitempty"`
}

// SearchQuery filters Directory.Search. Empty fields do not filter.
type SearchQuery struct {
	ISBN     string `json:"isbn,omitempty"`
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Category string `json:"category,omitempty"`
}
