package patient

type CreateIdentifierTypeCommand struct {
	Name        string
	Description string
	Format      string
	Required    bool
}

type CreateAttributeTypeCommand struct {
	Name        string
	Description string
	Format      string
	Searchable  bool
}
