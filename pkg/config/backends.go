package config

// Filesystem implementations selectable through filesystem.type.
import (
	_ "github.com/marmos91/fsdelegate/pkg/fs/kvfs/badgerstore"
	_ "github.com/marmos91/fsdelegate/pkg/fs/kvfs/memstore"
	_ "github.com/marmos91/fsdelegate/pkg/fs/kvfs/s3store"
)
