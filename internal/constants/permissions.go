package constants

import "os"

// DirPermStandard - каталог базы SQLite (owner rwx, group r-x).
const DirPermStandard os.FileMode = 0750
