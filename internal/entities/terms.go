package entities

// TechTerms is the dictionary behind the TECH label. Matching is
// case-insensitive on whole words.
var TechTerms = []string{
	// languages
	"go", "golang", "python", "rust", "java", "javascript", "typescript",
	"ruby", "kotlin", "swift", "scala", "elixir", "haskell", "clojure", "c++",
	"c#",
	// frameworks
	"react", "vue", "angular", "svelte", "django", "flask", "fastapi", "rails",
	"spring", "express", "nextjs", "gin", "echo",
	// infra
	"docker", "kubernetes", "k8s", "terraform", "ansible", "nginx", "apache",
	"linux", "systemd", "helm", "vault", "consul",
	// cloud
	"aws", "azure", "gcp", "lambda", "ec2", "s3", "cloudflare", "heroku",
	"vercel", "netlify",
	// databases
	"postgresql", "postgres", "mysql", "sqlite", "mongodb", "redis",
	"elasticsearch", "cassandra", "dynamodb", "clickhouse", "surrealdb",
	// tools
	"git", "github", "gitlab", "jenkins", "grafana", "prometheus", "kafka",
	"rabbitmq", "graphql", "grpc", "webpack", "vite", "jira", "figma",
	"ollama",
}

// ambiguousTechTerms collide with ordinary English words and require
// proper-noun capitalization to count as a TECH mention.
var ambiguousTechTerms = map[string]struct{}{
	"go":      {},
	"rust":    {},
	"swift":   {},
	"ruby":    {},
	"rails":   {},
	"gin":     {},
	"echo":    {},
	"spring":  {},
	"express": {},
	"vault":   {},
	"consul":  {},
	"lambda":  {},
}
