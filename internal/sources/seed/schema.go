package seed

// File is the top-level structure of the seed hosts file.
//
//	servers:
//	  - http://10.0.0.1:11434
//	  - ${HOME_OLLAMA_URL}
type File struct {
	Servers []string `yaml:"servers"`
}
