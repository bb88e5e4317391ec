package domain

// KeywordRule maps a case-insensitive keyword onto a subcategory label.
type KeywordRule struct {
	Keyword     string `yaml:"keyword"`
	Subcategory string `yaml:"subcategory"`
}

// PriorityRule drops Subordinate whenever Dominant is also present.
type PriorityRule struct {
	Dominant    string `yaml:"dominant"`
	Subordinate string `yaml:"subordinate"`
}
