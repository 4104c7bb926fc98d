// Package config provides configuration parsing for vps projects.
//
// The configuration is stored in vps.json (or vps.yaml) at the project
// root. This package handles loading, saving, and validating it.
//
// # Configuration File Structure
//
//	{
//	  "pages": "pages",
//	  "manifest": "dist/client/manifest.json",
//	  "assetPrefix": "/assets/",
//	  "production": true,
//	  "prerender": {
//	    "outDir": "dist/client",
//	    "partial": false,
//	    "concurrency": 8
//	  },
//	  "server": {
//	    "host": "localhost",
//	    "port": 3000
//	  },
//	  "output": {
//	    "s3": {
//	      "bucket": "my-site",
//	      "prefix": "www/",
//	      "region": "eu-west-1"
//	    }
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Output:", cfg.OutDirPath())
package config
