package importer

const (
	ColEmployeeCode = "employee_code"
	ColYear         = "year"
	ColName         = "name"
	ColWeight       = "weight"
	ColCategory     = "category"
	ColType         = "type"
	ColTarget70     = "target_70"
	ColTarget80     = "target_80"
	ColTarget90     = "target_90"
	ColTarget100    = "target_100"
	ColCheckerCode  = "checker_code"
	ColApproverCode = "approver_code"
)

var (
	BonusTypes      = []string{"PROJECT", "ROUTINE", "DEVELOPMENT"}
	BonusCategories = []string{"FINANCIAL", "CUSTOMER", "PROCESS", "PEOPLE"}
)

// BonusContract describes a KPI line-item sheet: one row per line item,
// grouped into documents by employee and year.
func BonusContract() Contract {
	return Contract{
		Required: []string{ColEmployeeCode, ColYear, ColName, ColWeight, ColCategory, ColType},
		Allowed: []string{
			ColEmployeeCode, ColYear, ColName, ColWeight, ColCategory, ColType,
			ColTarget70, ColTarget80, ColTarget90, ColTarget100,
			ColCheckerCode, ColApproverCode,
		},
		Enums: map[string][]string{
			ColType:     append([]string(nil), BonusTypes...),
			ColCategory: append([]string(nil), BonusCategories...),
		},
		Amounts:  []string{ColWeight},
		Integers: []string{ColYear},
	}
}
