package domain

// TransferMethod selects how a deposit is delivered to a partner bank.
type TransferMethod string

const (
	// MethodInternal marks the entry for this bank itself; transfers stay on
	// the local ledger.
	MethodInternal TransferMethod = "internal"
	// MethodQueryParams posts account_number and amount as query parameters.
	MethodQueryParams TransferMethod = "query_params"
	// MethodDeposit posts a JSON body to the partner's /deposit endpoint.
	MethodDeposit TransferMethod = "deposit"
	// MethodAuto discovers the deposit endpoint from the partner's published
	// API schema at call time.
	MethodAuto TransferMethod = "auto"
)

// PartnerBank is one entry in the externally supplied bank directory.
type PartnerBank struct {
	Code           string         `json:"code"`
	Name           string         `json:"name"`
	URL            string         `json:"url"`
	SortCode       string         `json:"sort_code"`
	IsInternal     bool           `json:"is_internal"`
	TransferMethod TransferMethod `json:"transfer_method"`
}
