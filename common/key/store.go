package key

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/BurntSushi/toml"

	"github.com/zkcred/zkcred/internal/fs"
)

// Store abstracts the loading and saving of key material. Only a file based
// store is implemented.
type Store interface {
	SaveKeyPair(p *Pair) error
	LoadKeyPair() (*Pair, error)
	LoadPublic() (*PublicKey, error)
}

// ErrAbsent is returned when the requested key file does not exist.
var ErrAbsent = errors.New("store can't find requested object")

// KeyFolderName is the name of the folder where keys are stored.
const KeyFolderName = "key"

const privateExtension = ".private"
const publicExtension = ".public"

// Tomler represents any struct that can be (un)marshaled into/from toml format
type Tomler interface {
	TOML() interface{}
	FromTOML(i interface{}) error
	TOMLValue() interface{}
}

type fileStore struct {
	baseFolder     string
	keyFolder      string
	privateKeyFile string
	publicKeyFile  string
}

// NewFileStore is used to create the config folder and all the subfolders.
// The pair is stored under baseFolder/key/<name>.private and .public.
func NewFileStore(baseFolder, name string) (Store, error) {
	keyFolder := path.Join(baseFolder, KeyFolderName)
	if _, err := fs.CreateSecureFolder(context.Background(), keyFolder); err != nil {
		return nil, fmt.Errorf("creating key folder: %w", err)
	}
	return &fileStore{
		baseFolder:     baseFolder,
		keyFolder:      keyFolder,
		privateKeyFile: path.Join(keyFolder, name+privateExtension),
		publicKeyFile:  path.Join(keyFolder, name+publicExtension),
	}, nil
}

// SaveKeyPair first saves the private key in a file with tight permissions and then
// saves the public part in another file.
func (f *fileStore) SaveKeyPair(p *Pair) error {
	if err := Save(f.privateKeyFile, p, true); err != nil {
		return err
	}
	return Save(f.publicKeyFile, &p.Public, false)
}

// LoadKeyPair decodes private key first then public, and checks they agree.
func (f *fileStore) LoadKeyPair() (*Pair, error) {
	p := new(Pair)
	if err := Load(f.privateKeyFile, p); err != nil {
		return nil, err
	}
	pub, err := f.LoadPublic()
	if err != nil {
		return nil, err
	}
	if !pub.Equal(p.Public) {
		return nil, fmt.Errorf("public key file does not match private key %s", f.privateKeyFile)
	}
	return p, nil
}

func (f *fileStore) LoadPublic() (*PublicKey, error) {
	pub := new(PublicKey)
	return pub, Load(f.publicKeyFile, pub)
}

// Save the given Tomler interface to the given path. If secure is true, the
// file will have a 0600 permission.
func Save(filePath string, t Tomler, secure bool) error {
	var fd *os.File
	var err error
	if secure {
		fd, err = fs.CreateSecureFile(filePath)
	} else {
		fd, err = os.Create(filePath)
	}
	if err != nil {
		return fmt.Errorf("config: can't save %T to %s: %w", t, filePath, err)
	}
	defer fd.Close()
	return toml.NewEncoder(fd).Encode(t.TOML())
}

// Load the given Tomler from the given file path.
func Load(filePath string, t Tomler) error {
	exists, err := fs.Exists(filePath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", filePath, ErrAbsent)
	}
	tomlValue := t.TOMLValue()
	if _, err := toml.DecodeFile(filePath, tomlValue); err != nil {
		return err
	}
	return t.FromTOML(tomlValue)
}
